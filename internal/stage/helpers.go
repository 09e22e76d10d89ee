package stage

import (
	"encoding/json"

	"carousel/internal/manifest"
	"carousel/internal/services"
	"carousel/internal/takeout"
)

// ParseParts decodes the archive part list stored on a queue item.
// On failure it returns a services.ErrValidation suitable for stage
// Execute methods.
func ParseParts(raw string) ([]takeout.Part, error) {
	if raw == "" {
		return nil, nil
	}
	var parts []takeout.Part
	if err := json.Unmarshal([]byte(raw), &parts); err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "parse parts",
			"Archive part list missing or invalid; rerun inspection", err)
	}
	return parts, nil
}

// EncodeParts serializes the archive part list for storage on a queue item.
func EncodeParts(parts []takeout.Part) (string, error) {
	if len(parts) == 0 {
		return "", nil
	}
	data, err := json.Marshal(parts)
	if err != nil {
		return "", services.Wrap(
			services.ErrValidation, "stage", "encode parts", "", err)
	}
	return string(data), nil
}

// LoadRecord loads the metadata record referenced by a queue item.
// On failure it returns a services.ErrValidation suitable for stage
// Execute methods.
func LoadRecord(recordPath string) (*manifest.Record, error) {
	if recordPath == "" {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load record",
			"Metadata record missing; rerun inspection", nil)
	}
	rec, err := manifest.Load(recordPath)
	if err != nil {
		return nil, services.Wrap(
			services.ErrValidation, "stage", "load record",
			"Metadata record unreadable; rerun inspection", err)
	}
	return rec, nil
}
