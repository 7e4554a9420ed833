package config_test

import (
	"errors"
	"runtime"
	"testing"
	"time"

	"github.com/okian/yecs/internal/config"
	"github.com/smartystreets/goconvey/convey"
)

func TestConfig_New(t *testing.T) {
	convey.Convey("Given a new config with default options", t, func() {
		cfg := config.New()

		convey.Convey("Then it should have sensible defaults", func() {
			convey.So(cfg.Addr, convey.ShouldEqual, ":9080")
			convey.So(cfg.EventQueueSize, convey.ShouldEqual, 10_000)
			convey.So(cfg.WorkerCount, convey.ShouldEqual, runtime.NumCPU()*2)
			convey.So(cfg.AckTimeout, convey.ShouldEqual, 5*time.Second)
			convey.So(cfg.RefreshInterval, convey.ShouldEqual, 24*time.Hour)
			convey.So(cfg.InferenceProvider, convey.ShouldEqual, config.ProviderOllama)
			convey.So(cfg.IdealAgeMin, convey.ShouldEqual, 25)
			convey.So(cfg.IdealAgeMax, convey.ShouldEqual, 35)
			convey.So(cfg.Validate(), convey.ShouldBeNil)
		})
	})
}

func TestConfig_Validate(t *testing.T) {
	convey.Convey("Given configs that break an invariant", t, func() {
		cases := map[string]func(c *config.Config){
			"empty addr":         func(c *config.Config) { c.Addr = "" },
			"empty channel":      func(c *config.Config) { c.ChannelURL = "" },
			"zero ack timeout":   func(c *config.Config) { c.AckTimeout = 0 },
			"inverted age band":  func(c *config.Config) { c.IdealAgeMin, c.IdealAgeMax = 40, 30 },
			"unknown provider":   func(c *config.Config) { c.InferenceProvider = "gpt" },
			"gemini without key": func(c *config.Config) { c.InferenceProvider = config.ProviderGemini },
		}

		for name, mutate := range cases {
			convey.Convey("When "+name, func() {
				cfg := config.New()
				mutate(cfg)

				convey.Convey("Then Validate should report ErrInvalidConfig", func() {
					convey.So(errors.Is(cfg.Validate(), config.ErrInvalidConfig), convey.ShouldBeTrue)
				})
			})
		}

		convey.Convey("When mock mode is on without a channel url", func() {
			cfg := config.New()
			cfg.MockMode = true
			cfg.ChannelURL = ""

			convey.Convey("Then it should still be valid", func() {
				convey.So(cfg.Validate(), convey.ShouldBeNil)
			})
		})
	})
}
