package mqtt

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// maxTopicLength is the MQTT limit on encoded topic length.
const maxTopicLength = 65535

// Wildcard characters in topic filters.
const (
	wildcardSingle = "+"
	wildcardMulti  = "#"
)

// ValidateTopicName checks a topic used for publishing.
//
// Topic names must be non-empty UTF-8, contain no NUL characters and
// contain no wildcards:
//
//	ValidateTopicName("sensors/kitchen/temperature") // nil
//	ValidateTopicName("sensors/+/temperature")      // ErrInvalidTopic
func ValidateTopicName(topic string) error {
	if err := validateTopicCommon(topic); err != nil {
		return err
	}
	if strings.ContainsAny(topic, wildcardSingle+wildcardMulti) {
		return fmt.Errorf("%w: wildcards are not allowed in publish topic %q", ErrInvalidTopic, topic)
	}
	return nil
}

// ValidateTopicFilter checks a topic filter used for subscribing.
//
// "+" must occupy a whole level; "#" must occupy the whole last level:
//
//	ValidateTopicFilter("sensors/+/temperature") // nil
//	ValidateTopicFilter("sensors/#")             // nil
//	ValidateTopicFilter("sensors/kit+chen")      // ErrInvalidTopic
//	ValidateTopicFilter("sensors/#/kitchen")     // ErrInvalidTopic
func ValidateTopicFilter(filter string) error {
	if err := validateTopicCommon(filter); err != nil {
		return err
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, wildcardMulti) {
			if level != wildcardMulti || i != len(levels)-1 {
				return fmt.Errorf("%w: %q may only appear as the last level in %q", ErrInvalidTopic, wildcardMulti, filter)
			}
		}
		if strings.Contains(level, wildcardSingle) && level != wildcardSingle {
			return fmt.Errorf("%w: %q must occupy a whole level in %q", ErrInvalidTopic, wildcardSingle, filter)
		}
	}
	return nil
}

// ValidateQoS checks that qos is 0, 1 or 2.
func ValidateQoS(qos byte) error {
	if qos > 2 {
		return ErrInvalidQoS
	}
	return nil
}

func validateTopicCommon(topic string) error {
	if topic == "" {
		return fmt.Errorf("%w: topic cannot be empty", ErrInvalidTopic)
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("%w: topic length %d exceeds %d bytes", ErrInvalidTopic, len(topic), maxTopicLength)
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("%w: topic is not valid UTF-8", ErrInvalidTopic)
	}
	if strings.ContainsRune(topic, 0) {
		return fmt.Errorf("%w: topic contains NUL", ErrInvalidTopic)
	}
	return nil
}
