package eventbus

import "encoding/json"

// marshalFlat merges typ as a "type" field with data's own fields (if
// data is a struct or map) into one flat JSON object.
func marshalFlat(typ EventType, data interface{}) ([]byte, error) {
	payload, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var fields map[string]interface{}
	if err := json.Unmarshal(payload, &fields); err != nil {
		// data wasn't an object (e.g. nil); fall back to a bare type field.
		fields = map[string]interface{}{}
	}
	fields["type"] = string(typ)

	return json.Marshal(fields)
}

// TranscriptSegmentData is the payload for EventTranscriptSegment.
type TranscriptSegmentData struct {
	SequenceNum int    `json:"segment_number"`
	Text        string `json:"text"`
	// Status is the segment's status tag (e.g. PROCESSING/TRANSCRIBED
	// for a batch job's look-ahead-tagged segments); omitted when the
	// originating pipeline doesn't set one.
	Status string `json:"status,omitempty"`
	// IsHistorical marks an event replayed from storage during SSE
	// backfill, distinguishing it from a genuinely live event.
	IsHistorical bool `json:"is_historical,omitempty"`
}

// FinalSummaryData is the payload for EventFinalSummary.
type FinalSummaryData struct {
	Summary       string `json:"summary"`
	TotalSegments int    `json:"total_segments"`
	IsHistorical  bool   `json:"is_historical,omitempty"`
}

// ErrorData is the payload for EventError.
type ErrorData struct {
	Message      string `json:"message"`
	IsHistorical bool   `json:"is_historical,omitempty"`
}
