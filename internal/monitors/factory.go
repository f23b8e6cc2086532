package monitors

import (
	"encoding/json"
	"fmt"

	"github.com/tg-sentinel-go/internal/models"
)

// New builds a monitor from its persisted form. Unknown types are an error;
// the variant set is closed.
func New(typ models.MonitorType, raw json.RawMessage, deps Deps) (Monitor, error) {
	switch typ {
	case models.MonitorKeyword:
		spec := &models.KeywordSpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewKeyword(spec, deps)
	case models.MonitorFile:
		spec := &models.FileSpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewFile(spec, deps), nil
	case models.MonitorButton:
		spec := &models.ButtonSpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewButton(spec, deps), nil
	case models.MonitorAllMessages:
		spec := &models.AllMessagesSpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewAllMessages(spec, deps), nil
	case models.MonitorAI:
		spec := &models.AISpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewAI(spec, deps), nil
	case models.MonitorImageButton:
		spec := &models.ImageButtonSpec{}
		if err := unmarshalSpec(raw, spec, &spec.MonitorConfig); err != nil {
			return nil, err
		}
		return NewImageButton(spec, deps), nil
	default:
		return nil, fmt.Errorf("unknown monitor type: %s", typ)
	}
}

func unmarshalSpec(raw json.RawMessage, spec interface{}, cfg *models.MonitorConfig) error {
	if err := json.Unmarshal(raw, spec); err != nil {
		return fmt.Errorf("invalid monitor config: %w", err)
	}
	cfg.Normalize()
	return nil
}
