package storage

import (
	"encoding/json"
	"io"

	"github.com/san-kum/numode/internal/dynamo"
)

type ExportData struct {
	RunMetadata
	Times  []float64      `json:"times"`
	States []dynamo.State `json:"states"`
}

// ExportJSON writes a stored run, metadata and series together, as
// indented JSON.
func (s *Store) ExportJSON(w io.Writer, runID string) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(ExportData{RunMetadata: *meta, Times: times, States: states})
}
