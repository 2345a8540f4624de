package bus

import (
	"fmt"
	"strings"

	"github.com/reviewradar/review-radar/internal/config"
	apperrors "github.com/reviewradar/review-radar/internal/pkg/errors"
	"github.com/reviewradar/review-radar/internal/pkg/logger"
)

// New creates a Bus instance based on configuration.
func New(cfg config.BusConfig, log *logger.Logger) (Bus, error) {
	switch strings.ToLower(cfg.Type) {
	case "memory", "":
		return NewMemoryBus(log), nil

	case "kafka":
		brokers := ParseKafkaBrokers(cfg.KafkaBrokers)
		if len(brokers) == 0 {
			return nil, apperrors.ValidationError("kafka brokers not configured")
		}

		group := cfg.KafkaGroup
		if group == "" {
			group = "review-radar"
		}

		return NewKafkaBus(KafkaConfig{
			Brokers:       brokers,
			ConsumerGroup: group,
			ClientID:      "review-radar-bus",
		}, log)

	default:
		return nil, apperrors.ValidationError(fmt.Sprintf("unknown bus type: %s", cfg.Type))
	}
}
