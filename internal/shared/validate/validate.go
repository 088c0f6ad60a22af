// Package validate enforces the payload limits the WeCom API applies
// to message pushes, so oversized or malformed requests fail locally
// instead of burning an upstream call.
package validate

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// Byte limits from the WeCom message API.
const (
	MaxTextContentBytes     = 2048
	MaxMarkdownContentBytes = 4096
	MaxUserIDLength         = 64
)

// userIDPattern matches WeCom member account IDs.
var userIDPattern = regexp.MustCompile(`^[a-zA-Z0-9._@-]+$`)

// UserID validates a WeCom member account ID.
func UserID(userID string) error {
	if userID == "" {
		return fmt.Errorf("userid is required")
	}
	if len(userID) > MaxUserIDLength {
		return fmt.Errorf("userid must not exceed %d characters", MaxUserIDLength)
	}
	if !userIDPattern.MatchString(userID) {
		return fmt.Errorf("userid contains invalid characters")
	}
	return nil
}

// MessageContent validates message body size against the per-type limit.
func MessageContent(msgType types.MessageType, content string) error {
	if content == "" {
		return fmt.Errorf("content is required")
	}
	if strings.Contains(content, "\x00") {
		return fmt.Errorf("content contains invalid characters")
	}

	limit := MaxTextContentBytes
	if msgType == types.MessageMarkdown {
		limit = MaxMarkdownContentBytes
	}
	if len(content) > limit {
		return fmt.Errorf("%s content %d bytes exceeds maximum %d bytes", msgType, len(content), limit)
	}
	return nil
}

// SendMessageRequest validates a complete message push request.
func SendMessageRequest(req types.SendMessageRequest) error {
	if err := UserID(req.UserID); err != nil {
		return err
	}
	switch req.Type {
	case types.MessageText, types.MessageMarkdown:
	default:
		return fmt.Errorf("unsupported message type %q", req.Type)
	}
	return MessageContent(req.Type, req.Content)
}
