package repository

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/keepsake/internal/model"
)

// standaloneMetadata is the JSON document stored in milestones.metadata by
// schemas that have no dedicated standalone columns.
type standaloneMetadata struct {
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Type         string     `json:"type"`
	TargetDate   *time.Time `json:"target_date"`
	TargetCount  *int       `json:"target_count"`
	ReminderDays *int       `json:"reminder_days"`
}

// EncodeStandalone serialises the standalone attributes of a milestone.
func EncodeStandalone(s model.Standalone) ([]byte, error) {
	b, err := json.Marshal(standaloneMetadata{
		Title:        s.Title,
		Description:  s.Description,
		Type:         s.Type,
		TargetDate:   s.TargetDate,
		TargetCount:  s.TargetCount,
		ReminderDays: s.ReminderDays,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding milestone metadata: %w", err)
	}
	return b, nil
}

// DecodeStandalone is the inverse of EncodeStandalone. A missing type reads
// as model.DefaultMilestoneType. A document without a reminder_days key reads
// as the default lead time; an explicit null means no reminder.
//
// Older writers stored numbers as strings and dates in several layouts, so
// each field is read on its own. A field that still cannot be read is left
// at its zero value and reported in the returned error, alongside the
// best-effort Standalone. Only a document that is not a JSON object yields
// the zero Standalone.
func DecodeStandalone(raw []byte) (model.Standalone, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return model.Standalone{}, fmt.Errorf("decoding milestone metadata: %w", err)
	}

	var (
		s    model.Standalone
		errs []error
	)
	field := func(key string, decode func(json.RawMessage) error) {
		v, ok := fields[key]
		if !ok || isNull(v) {
			return
		}
		if err := decode(v); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", key, err))
		}
	}

	field("title", func(v json.RawMessage) error { return json.Unmarshal(v, &s.Title) })
	field("description", func(v json.RawMessage) error { return json.Unmarshal(v, &s.Description) })
	field("type", func(v json.RawMessage) error { return json.Unmarshal(v, &s.Type) })
	field("target_date", func(v json.RawMessage) error {
		t, err := metadataTime(v)
		if err == nil {
			s.TargetDate = &t
		}
		return err
	})
	field("target_count", func(v json.RawMessage) error {
		n, err := metadataInt(v)
		if err == nil {
			s.TargetCount = &n
		}
		return err
	})

	if v, present := fields["reminder_days"]; !present {
		days := model.DefaultReminderDays
		s.ReminderDays = &days
	} else if !isNull(v) {
		n, err := metadataInt(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("reminder_days: %w", err))
			n = model.DefaultReminderDays
		}
		s.ReminderDays = &n
	}

	if s.Type == "" {
		s.Type = model.DefaultMilestoneType
	}
	if len(errs) > 0 {
		return s, fmt.Errorf("decoding milestone metadata: %w", errors.Join(errs...))
	}
	return s, nil
}

func isNull(v json.RawMessage) bool {
	return string(bytes.TrimSpace(v)) == "null"
}

// metadataInt reads a JSON integer or a string holding one.
func metadataInt(v json.RawMessage) (int, error) {
	var n int
	if err := json.Unmarshal(v, &n); err == nil {
		return n, nil
	}
	var str string
	if err := json.Unmarshal(v, &str); err != nil {
		return 0, fmt.Errorf("not an integer: %s", v)
	}
	return strconv.Atoi(strings.TrimSpace(str))
}

var metadataTimeLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

// metadataTime reads an RFC 3339 timestamp or a plain date, the latter in UTC.
func metadataTime(v json.RawMessage) (time.Time, error) {
	var str string
	if err := json.Unmarshal(v, &str); err != nil {
		return time.Time{}, fmt.Errorf("not a date: %s", v)
	}
	str = strings.TrimSpace(str)
	for _, layout := range metadataTimeLayouts {
		if t, err := time.Parse(layout, str); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not a date: %q", str)
}
