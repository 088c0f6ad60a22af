package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

func TestUserID(t *testing.T) {
	tests := []struct {
		name    string
		userID  string
		wantErr bool
	}{
		{name: "plain", userID: "zhangsan"},
		{name: "mixed", userID: "zhang.san_01@corp"},
		{name: "empty", userID: "", wantErr: true},
		{name: "too long", userID: strings.Repeat("a", 65), wantErr: true},
		{name: "spaces", userID: "zhang san", wantErr: true},
		{name: "cjk", userID: "张三", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := UserID(tt.userID)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMessageContent(t *testing.T) {
	assert.NoError(t, MessageContent(types.MessageText, "hello"))
	assert.NoError(t, MessageContent(types.MessageText, strings.Repeat("a", MaxTextContentBytes)))
	assert.Error(t, MessageContent(types.MessageText, strings.Repeat("a", MaxTextContentBytes+1)))

	// Markdown gets the larger limit
	long := strings.Repeat("a", MaxTextContentBytes+1)
	assert.NoError(t, MessageContent(types.MessageMarkdown, long))
	assert.Error(t, MessageContent(types.MessageMarkdown, strings.Repeat("a", MaxMarkdownContentBytes+1)))

	assert.Error(t, MessageContent(types.MessageText, ""))
	assert.Error(t, MessageContent(types.MessageText, "bad\x00byte"))
}

func TestSendMessageRequest(t *testing.T) {
	assert.NoError(t, SendMessageRequest(types.SendMessageRequest{
		UserID:  "lisi",
		Type:    types.MessageText,
		Content: "ping",
	}))

	assert.Error(t, SendMessageRequest(types.SendMessageRequest{
		UserID:  "lisi",
		Type:    "image",
		Content: "ping",
	}))

	assert.Error(t, SendMessageRequest(types.SendMessageRequest{
		Type:    types.MessageText,
		Content: "ping",
	}))
}
