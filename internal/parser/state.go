package parser

import (
	jsonx "callsieve/internal/shared/json"
)

// DetectorState is the cross-fragment state of one incremental session.
// It is a plain value: Snapshot and Restore copy it in and out of a detector.
type DetectorState struct {
	// Buffer holds text not yet resolved into output.
	Buffer string `json:"buffer"`
	// CurrentToolID is the index of the call being streamed, -1 before the
	// first call.
	CurrentToolID int            `json:"current_tool_id"`
	PrevToolCalls []CallSnapshot `json:"prev_tool_calls,omitempty"`
	StreamedArgs  []string       `json:"streamed_args,omitempty"`
	NameSent      bool           `json:"name_sent"`
	LastArguments string         `json:"last_arguments"`
	// OpenerTail is the end of the last text passed through, kept so an
	// opening delimiter split across fragments is still recognised.
	OpenerTail string `json:"opener_tail,omitempty"`
}

// NewDetectorState returns the state of a session that has seen no input.
func NewDetectorState() DetectorState {
	return DetectorState{CurrentToolID: -1}
}

// Clone returns a deep copy of s.
func (s DetectorState) Clone() DetectorState {
	out := s
	if s.PrevToolCalls != nil {
		out.PrevToolCalls = make([]CallSnapshot, len(s.PrevToolCalls))
		for i, call := range s.PrevToolCalls {
			out.PrevToolCalls[i] = CallSnapshot{
				Name:      call.Name,
				Arguments: append(jsonx.RawMessage(nil), call.Arguments...),
			}
		}
	}
	if s.StreamedArgs != nil {
		out.StreamedArgs = append([]string(nil), s.StreamedArgs...)
	}
	return out
}

// ensureTracking sizes the per-call slices for the current index, starting
// the session at index 0 if no call has been seen.
func (s *DetectorState) ensureTracking() {
	if s.CurrentToolID == -1 {
		s.CurrentToolID = 0
		s.PrevToolCalls = nil
		s.StreamedArgs = []string{""}
		s.NameSent = false
	}
	for len(s.PrevToolCalls) <= s.CurrentToolID {
		s.PrevToolCalls = append(s.PrevToolCalls, CallSnapshot{})
	}
	for len(s.StreamedArgs) <= s.CurrentToolID {
		s.StreamedArgs = append(s.StreamedArgs, "")
	}
}

// advance moves to the next call after a closing delimiter was consumed.
func (s *DetectorState) advance() {
	s.CurrentToolID++
	s.NameSent = false
	s.LastArguments = ""
}
