package natsbridge

import "github.com/c360/audiograph/backend"

// Subject layout for the renderer protocol. Context-level operations are
// request/reply; handle-level operations are fire-and-forget publishes
// except create, which waits for the renderer to accept the category.
const (
	subjectPrefix = "audiograph.backend.v1"

	subjectResume = subjectPrefix + ".resume"
	subjectClock  = subjectPrefix + ".clock"
	subjectClose  = subjectPrefix + ".close"

	subjectHandleCreate     = subjectPrefix + ".handle.create"
	subjectHandleParam      = subjectPrefix + ".handle.param"
	subjectHandleConnect    = subjectPrefix + ".handle.connect"
	subjectHandleDisconnect = subjectPrefix + ".handle.disconnect"
	subjectHandleStart      = subjectPrefix + ".handle.start"
	subjectHandleStop       = subjectPrefix + ".handle.stop"
	subjectHandleRelease    = subjectPrefix + ".handle.release"
)

// Command is the JSON envelope sent to the renderer. Op names the
// operation; the remaining fields are populated per op and omitted
// otherwise. HandleID identifies the acting handle and TargetID the
// destination of connect/disconnect.
type Command struct {
	Op       string         `json:"op"`
	HandleID string         `json:"handle_id,omitempty"`
	TargetID string         `json:"target_id,omitempty"`
	Category string         `json:"category,omitempty"`
	Props    map[string]any `json:"props,omitempty"`
	Param    string         `json:"param,omitempty"`
	Value    any            `json:"value,omitempty"`
	At       backend.Time   `json:"at"`
}

// Reply is the renderer's response to request/reply commands.
type Reply struct {
	OK    bool         `json:"ok"`
	Error string       `json:"error,omitempty"`
	Now   backend.Time `json:"now,omitempty"`
}

// Op names carried in Command.Op. The renderer dispatches on these, so
// they are part of the wire protocol and must not change.
const (
	opResume     = "resume"
	opClock      = "clock"
	opClose      = "close"
	opCreate     = "create"
	opParam      = "param"
	opConnect    = "connect"
	opDisconnect = "disconnect"
	opStart      = "start"
	opStop       = "stop"
	opRelease    = "release"
)

// subjectFor maps an op to its NATS subject.
func subjectFor(op string) string {
	switch op {
	case opResume:
		return subjectResume
	case opClock:
		return subjectClock
	case opClose:
		return subjectClose
	case opCreate:
		return subjectHandleCreate
	case opParam:
		return subjectHandleParam
	case opConnect:
		return subjectHandleConnect
	case opDisconnect:
		return subjectHandleDisconnect
	case opStart:
		return subjectHandleStart
	case opStop:
		return subjectHandleStop
	case opRelease:
		return subjectHandleRelease
	default:
		return ""
	}
}
