package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/sakif/keepsake/internal/apperror"
	"github.com/sakif/keepsake/internal/service"
)

// maxBodyBytes bounds request bodies. Milestone payloads are a few hundred
// bytes.
const maxBodyBytes = 64 << 10

// Clients send reminder_enabled and target_count either as JSON scalars or
// as strings, so both are decoded by hand.
type createMilestoneRequest struct {
	MemoryID        *string         `json:"memory_id"`
	CelebrationDate *string         `json:"celebration_date"`
	ReminderEnabled json.RawMessage `json:"reminder_enabled"`
	Title           *string         `json:"title"`
	Description     *string         `json:"description"`
	Type            *string         `json:"type"`
	TargetDate      *string         `json:"target_date"`
	TargetCount     json.RawMessage `json:"target_count"`
	ReminderOption  *string         `json:"reminder_option"`
}

type updateMilestoneRequest struct {
	CelebrationDate *string         `json:"celebration_date"`
	ReminderEnabled json.RawMessage `json:"reminder_enabled"`
}

func (req createMilestoneRequest) input() (service.CreateMilestoneInput, error) {
	count, err := looseInt(req.TargetCount)
	if err != nil {
		return service.CreateMilestoneInput{}, apperror.ValidationFailed("target_count", service.MsgInvalidTargetCount)
	}
	return service.CreateMilestoneInput{
		MemoryID:        req.MemoryID,
		CelebrationDate: req.CelebrationDate,
		ReminderEnabled: looseBool(req.ReminderEnabled, nil),
		Title:           req.Title,
		Description:     req.Description,
		Type:            req.Type,
		TargetDate:      req.TargetDate,
		TargetCount:     count,
		ReminderOption:  req.ReminderOption,
	}, nil
}

func (req updateMilestoneRequest) input() service.UpdateMilestoneInput {
	off := false
	return service.UpdateMilestoneInput{
		CelebrationDate: req.CelebrationDate,
		ReminderEnabled: looseBool(req.ReminderEnabled, &off),
	}
}

// decodeBody reads a JSON object into dst. An empty body decodes as {}.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return nil
		}
		return apperror.ValidationFailed("body", "Invalid JSON body")
	}
	return nil
}

// looseBool reads a flag the way clients have always sent it. A missing
// field is nil. A JSON boolean is itself; a string is true only when it
// spells "true" in any case. Every other value, null included, yields
// fallback.
func looseBool(raw json.RawMessage, fallback *bool) *bool {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil
	}
	var b bool
	if err := json.Unmarshal(raw, &b); err == nil && string(raw) != "null" {
		return &b
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil && string(raw) != "null" {
		b = strings.EqualFold(strings.TrimSpace(s), "true")
		return &b
	}
	return fallback
}

// looseInt accepts an integral JSON number or a string holding one. null
// and "" are absent.
func looseInt(raw json.RawMessage) (*int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return nil, err
		}
		return &n, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, err
	}
	return &n, nil
}
