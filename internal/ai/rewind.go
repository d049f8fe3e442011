package ai

import "fmt"

// Rewind truncates a conversation so the user can edit and resend an
// earlier message. index addresses the message to discard; the message
// at index and everything after it are dropped, and the recovered text
// is that message's rendered text (what the user is meant to re-edit).
//
// index may equal len(conv), in which case nothing is discarded and the
// recovered text is empty. Any existing message at index must have role
// user; otherwise ErrInvalidRewindPoint is returned and the
// conversation is unmodified.
func Rewind(conv Conversation, index int) (Conversation, string, error) {
	if index < 0 || index > len(conv) {
		return nil, "", fmt.Errorf("%w: index %d out of range [0, %d]", ErrInvalidRewindPoint, index, len(conv))
	}
	if index == len(conv) {
		return conv.Clone(), "", nil
	}
	if conv[index].Role != RoleUser {
		return nil, "", fmt.Errorf("%w: message %d has role %s, want user", ErrInvalidRewindPoint, index, conv[index].Role)
	}
	return conv[:index].Clone(), conv[index].RenderedText(), nil
}
