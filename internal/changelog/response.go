package changelog

import "errors"

// ErrBadUpdatesType marks a changelog response of a kind that should never
// answer a changelog request.
var ErrBadUpdatesType = errors.New("bad updates type in app changelog")

type ResponseKind int

const (
	KindUnrecognized ResponseKind = iota
	KindShortUpdate
	KindCombinedUpdates
	KindFullUpdates
	KindTooLong
	KindShortSentMessage
)

func (k ResponseKind) String() string {
	switch k {
	case KindShortUpdate:
		return "short_update"
	case KindCombinedUpdates:
		return "updates_combined"
	case KindFullUpdates:
		return "updates"
	case KindTooLong:
		return "updates_too_long"
	case KindShortSentMessage:
		return "short_sent_message"
	default:
		return "unrecognized"
	}
}

// Update is one server update carried by a response.
type Update struct {
	Type    string `json:"type"`
	Message string `json:"message,omitempty"`
}

// TypeServiceNotification is the update type the remote changelog uses to
// deliver notes.
const TypeServiceNotification = "updateServiceNotification"

// Response is a decoded remote changelog answer.
type Response struct {
	Kind    ResponseKind
	Updates []Update
}

// classify reports whether r carries no changelog content. Abnormal kinds are
// reported as empty together with ErrBadUpdatesType so the caller falls back.
func classify(r Response) (empty bool, err error) {
	switch r.Kind {
	case KindShortUpdate:
		return false, nil
	case KindCombinedUpdates, KindFullUpdates:
		return len(r.Updates) == 0, nil
	case KindTooLong, KindShortSentMessage:
		return true, ErrBadUpdatesType
	default:
		return true, ErrBadUpdatesType
	}
}
