package metrics

import (
	"encoding/json"
	"fmt"
	"time"
)

type readingJSON struct {
	SourceID          string          `json:"source_id"`
	Kind              Kind            `json:"kind,omitempty"`
	Data              json.RawMessage `json:"data,omitempty"`
	LastUpdateSuccess bool            `json:"last_update_success"`
	Timestamp         time.Time       `json:"timestamp"`
	State             SourceState     `json:"state"`
	Err               string          `json:"error,omitempty"`
}

// MarshalJSON encodes the reading with the payload's kind so the
// interface-typed Data field survives a round trip.
func (r Reading) MarshalJSON() ([]byte, error) {
	out := readingJSON{
		SourceID:          r.SourceID,
		LastUpdateSuccess: r.LastUpdateSuccess,
		Timestamp:         r.Timestamp,
		State:             r.State,
		Err:               r.Err,
	}
	if r.Data != nil {
		out.Kind = r.Data.Kind()
		data, err := json.Marshal(r.Data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s data: %w", r.SourceID, err)
		}
		out.Data = data
	}
	return json.Marshal(out)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (r *Reading) UnmarshalJSON(b []byte) error {
	var in readingJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	r.SourceID = in.SourceID
	r.LastUpdateSuccess = in.LastUpdateSuccess
	r.Timestamp = in.Timestamp
	r.State = in.State
	r.Err = in.Err
	r.Data = nil
	if in.Kind != "" && len(in.Data) > 0 {
		v, err := UnmarshalValue(in.Kind, in.Data)
		if err != nil {
			return err
		}
		r.Data = v
	}
	return nil
}

// UnmarshalValue decodes a JSON payload into the concrete Value for the
// given kind. It is the inverse of marshalling a Value directly and is
// used by snapshot persistence, where the kind is stored alongside the
// payload.
func UnmarshalValue(kind Kind, data []byte) (Value, error) {
	var v Value
	switch kind {
	case KindDiskUsage:
		v = &DiskUsage{}
	case KindMemory:
		v = &Memory{}
	case KindSwap:
		v = &Swap{}
	case KindNetIO:
		v = &NetIO{}
	case KindNetAddrs:
		v = &NetAddrs{}
	case KindCPUTemp:
		v = &CPUTemp{}
	case KindCPUPercent:
		v = &CPUPercent{}
	case KindLoadAvg:
		v = &LoadAvg{}
	case KindProcessList:
		v = &ProcessList{}
	default:
		return nil, fmt.Errorf("unknown metric kind %q", kind)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return nil, fmt.Errorf("decode %s value: %w", kind, err)
	}
	return deref(v), nil
}

// deref returns the value pointed to so callers always see the same
// concrete types the collectors produce.
func deref(v Value) Value {
	switch t := v.(type) {
	case *DiskUsage:
		return *t
	case *Memory:
		return *t
	case *Swap:
		return *t
	case *NetIO:
		return *t
	case *NetAddrs:
		return *t
	case *CPUTemp:
		return *t
	case *CPUPercent:
		return *t
	case *LoadAvg:
		return *t
	case *ProcessList:
		return *t
	}
	return v
}
