package sensor_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"

	"github.com/sensorlink/aranet4/mocks"
	"github.com/sensorlink/aranet4/pkg/connector"
	"github.com/sensorlink/aranet4/pkg/history"
	"github.com/sensorlink/aranet4/pkg/protocol"
	"github.com/sensorlink/aranet4/pkg/sensor"
)

var readingPacket = []byte{0xA4, 0x01, 0x90, 0x01, 0xC4, 0x03, 0x2D, 0x57, 0x02}

func historyPage(p protocol.Parameter, n uint8, samples ...byte) []byte {
	h := protocol.HistoryHeader{
		Parameter:                p,
		Interval:                 300,
		TotalMeasurements:        uint16(n),
		TimeSinceLastMeasurement: 20,
		FirstMeasureIndex:        1,
		NumMeasurements:          n,
	}
	return append(h.Encode(), samples...)
}

var _ = Describe("Sensor", func() {
	var (
		ctrl       *gomock.Controller
		peripheral *mocks.Peripheral
		s          *sensor.Sensor
		ctx        context.Context
		present    map[protocol.UUID]bool
	)

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		peripheral = mocks.NewPeripheral(ctrl)
		ctx = context.Background()
		present = map[protocol.UUID]bool{
			protocol.CurrentReadingsUUID:    true,
			protocol.SecondsSinceUpdateUUID: true,
			protocol.IntervalUUID:           true,
			protocol.TotalReadingsUUID:      true,
			protocol.CommandUUID:            true,
			protocol.HistoryReadingsUUID:    true,
		}
		peripheral.EXPECT().HasCharacteristic(gomock.Any()).DoAndReturn(func(uuid protocol.UUID) bool {
			return present[uuid]
		}).AnyTimes()
		s = sensor.New(peripheral, nil)
		DeferCleanup(func() {
			ctrl.Finish()
		})
	})

	Describe("ReadCurrentValues", func() {
		It("decodes the current reading", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.CurrentReadingsUUID).Return(readingPacket, nil)
			reading, err := s.ReadCurrentValues(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(reading.CO2).To(Equal(uint16(420)))
			Expect(reading.TemperatureF).To(Equal(float32(68)))
			Expect(reading.PressureKPa).To(Equal(float32(101.3)))
			Expect(reading.Humidity).To(Equal(uint8(45)))
			Expect(reading.Battery).To(Equal(uint8(87)))
			Expect(reading.StatusColor).To(Equal(uint8(2)))
		})

		It("bounds the read with a deadline", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.CurrentReadingsUUID).DoAndReturn(func(ctx context.Context, _ protocol.UUID) ([]byte, error) {
				_, ok := ctx.Deadline()
				Expect(ok).To(BeTrue())
				return readingPacket, nil
			})
			_, err := s.ReadCurrentValues(ctx)
			Expect(err).ToNot(HaveOccurred())
		})

		It("fails on a short packet", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.CurrentReadingsUUID).Return(readingPacket[:5], nil)
			_, err := s.ReadCurrentValues(ctx)
			Expect(err).To(MatchError(protocol.ErrMalformedPacket))
		})

		It("fails without I/O when the characteristic is missing", func() {
			delete(present, protocol.CurrentReadingsUUID)
			_, err := s.ReadCurrentValues(ctx)
			Expect(err).To(MatchError(protocol.ErrCharacteristicNotFound))
		})

		It("propagates transport errors", func() {
			linkLost := errors.New("link lost")
			peripheral.EXPECT().Read(gomock.Any(), protocol.CurrentReadingsUUID).Return(nil, linkLost)
			_, err := s.ReadCurrentValues(ctx)
			Expect(err).To(MatchError(linkLost))
		})
	})

	Describe("LastUpdateTime", func() {
		It("returns the age of the latest measurement", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.SecondsSinceUpdateUUID).Return([]byte{0x2c, 0x01}, nil)
			age, err := s.LastUpdateTime(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(age).To(Equal(300 * time.Second))
		})

		It("fails on a one byte packet", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.SecondsSinceUpdateUUID).Return([]byte{0x2c}, nil)
			_, err := s.LastUpdateTime(ctx)
			Expect(err).To(MatchError(protocol.ErrMalformedPacket))
		})
	})

	Describe("Interval and TotalReadings", func() {
		It("decodes both counters", func() {
			peripheral.EXPECT().Read(gomock.Any(), protocol.IntervalUUID).Return([]byte{0x3c, 0x00}, nil)
			peripheral.EXPECT().Read(gomock.Any(), protocol.TotalReadingsUUID).Return([]byte{0x10, 0x27}, nil)
			interval, err := s.Interval(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(interval).To(Equal(time.Minute))
			total, err := s.TotalReadings(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(total).To(Equal(10000))
		})
	})

	Describe("DeviceInfo", func() {
		It("reads only the characteristics that exist", func() {
			present[protocol.ModelNumberUUID] = true
			present[protocol.BatteryLevelUUID] = true
			peripheral.EXPECT().Read(gomock.Any(), protocol.ModelNumberUUID).Return([]byte("Aranet4\x00"), nil)
			peripheral.EXPECT().Read(gomock.Any(), protocol.BatteryLevelUUID).Return([]byte{87}, nil)
			info, err := s.DeviceInfo(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(info.Model).To(Equal("Aranet4"))
			Expect(info.Name).To(BeEmpty())
			Expect(info.Battery).ToNot(BeNil())
			Expect(*info.Battery).To(Equal(uint8(87)))
			Expect(info.String()).To(Equal("Model: Aranet4\nBattery: 87%\n"))
		})
	})

	Describe("HistoricalData", func() {
		var puller *mocks.Puller

		channel := func(p protocol.Parameter, samples ...uint16) *history.Channel {
			return &history.Channel{Parameter: p, Samples: samples}
		}

		BeforeEach(func() {
			puller = mocks.NewPuller(ctrl)
			s = sensor.New(peripheral, &sensor.Options{Puller: puller})
		})

		It("pulls the four channels in order and aligns them", func() {
			start := time.Unix(1_700_000_000, 0)
			temperature := channel(protocol.ParameterTemperature, 400, 420)
			temperature.Information = &history.Information{Interval: 5 * time.Minute, Start: start}
			gomock.InOrder(
				puller.EXPECT().Pull(gomock.Any(), protocol.ParameterTemperature).Return(temperature, nil),
				puller.EXPECT().Pull(gomock.Any(), protocol.ParameterHumidity).Return(channel(protocol.ParameterHumidity, 40, 41, 42), nil),
				puller.EXPECT().Pull(gomock.Any(), protocol.ParameterCO2).Return(channel(protocol.ParameterCO2, 600), nil),
				puller.EXPECT().Pull(gomock.Any(), protocol.ParameterPressure).Return(channel(protocol.ParameterPressure, 1013, 1014, 1015), nil),
			)

			readings, err := s.HistoricalData(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(readings.Len()).To(Equal(2))
			Expect(readings.Humidity).To(Equal([]uint8{40, 41}))
			Expect(readings.CO2).To(Equal([]uint16{600}))

			records := readings.Slice()
			Expect(records).To(HaveLen(2))
			Expect(records[1].Time).To(Equal(start.Add(5 * time.Minute)))
			Expect(records[1].Temperature).To(Equal(protocol.ConvertTemperature(420)))
			Expect(records[1].Pressure).To(Equal(protocol.ConvertPressure(1014)))
			Expect(records[1].CO2).To(BeZero())
		})

		It("stops at the first failing channel", func() {
			temperature := channel(protocol.ParameterTemperature, 400)
			temperature.Information = &history.Information{}
			puller.EXPECT().Pull(gomock.Any(), protocol.ParameterTemperature).Return(temperature, nil)
			puller.EXPECT().Pull(gomock.Any(), protocol.ParameterHumidity).Return(nil, protocol.ErrTimeout)
			_, err := s.HistoricalData(ctx)
			Expect(err).To(MatchError(protocol.ErrTimeout))
			Expect(protocol.Temporary(err)).To(BeTrue())
		})

		It("checks both history characteristics before any I/O", func() {
			delete(present, protocol.CommandUUID)
			_, err := s.HistoricalData(ctx)
			Expect(err).To(MatchError(protocol.ErrCharacteristicNotFound))
		})
	})

	Describe("HistoricalData over the page protocol", func() {
		It("downloads every channel from the peripheral", func() {
			pages := map[protocol.Parameter][][]byte{
				protocol.ParameterTemperature: {historyPage(protocol.ParameterTemperature, 2, 0x90, 0x01, 0xa4, 0x01)},
				protocol.ParameterHumidity:    {historyPage(protocol.ParameterHumidity, 2, 45, 46)},
				protocol.ParameterCO2:         {historyPage(protocol.ParameterCO2, 2, 0xa4, 0x01, 0xb8, 0x01)},
				protocol.ParameterPressure:    {historyPage(protocol.ParameterPressure, 2, 0xc4, 0x03, 0xc5, 0x03)},
			}
			var current []byte
			var queue [][]byte
			peripheral.EXPECT().Write(gomock.Any(), protocol.CommandUUID, gomock.Any(), connector.WriteWithoutResponse).
				DoAndReturn(func(_ context.Context, _ protocol.UUID, data []byte, _ connector.WriteMode) error {
					Expect(data).To(HaveLen(4))
					current = data
					queue = pages[protocol.Parameter(data[1])]
					return nil
				}).Times(4)
			peripheral.EXPECT().Read(gomock.Any(), protocol.HistoryReadingsUUID).
				DoAndReturn(func(context.Context, protocol.UUID) ([]byte, error) {
					if len(queue) == 0 {
						return historyPage(protocol.Parameter(current[1]), 0), nil
					}
					next := queue[0]
					queue = queue[1:]
					return next, nil
				}).Times(8)

			readings, err := s.HistoricalData(ctx)
			Expect(err).ToNot(HaveOccurred())
			Expect(readings.Len()).To(Equal(2))
			Expect(readings.Information.Interval).To(Equal(5 * time.Minute))
			Expect(readings.Humidity).To(Equal([]uint8{45, 46}))
			Expect(readings.CO2).To(Equal([]uint16{420, 440}))
			Expect(readings.Pressure).To(Equal([]float32{protocol.ConvertPressure(964), protocol.ConvertPressure(965)}))
		})
	})
})
