package emailsvc

import (
	"net/mail"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

func TestConsoleServiceMock(t *testing.T) {
	conf := core.NewConfig()
	svc := NewConsoleServiceMock(conf)
	to := []mail.Address{{Name: "Ngozi", Address: "ngozi@test.cd"}}

	tests := []struct {
		name     string
		msg      core.EmailMessage
		wantSent bool
		contains []string
	}{
		{
			name: "fee invoice",
			msg: core.EmailMessage{
				To: to, Subject: "Fee Invoice INV-1", TemplateName: "fee_invoice",
				TemplateData: map[string]interface{}{
					"StudentName": "Ngozi", "Number": "INV-1", "Description": "Tuition", "Term": "First Term",
					"Session": "2024/2025", "Amount": 5000.0, "Status": "Paid", "DueDate": "",
				},
			},
			wantSent: true,
			contains: []string{"Invoice INV-1", "Amount: 5000.00"},
		},
		{
			name: "overdue reminder",
			msg: core.EmailMessage{
				To: to, Subject: "Overdue library book", TemplateName: "overdue_reminder",
				TemplateData: map[string]interface{}{
					"StudentName": "Ngozi", "BookTitle": "Arrow of God", "BorrowDate": "2024-09-01", "DueDate": "2024-09-15",
				},
			},
			wantSent: true,
			contains: []string{`"Arrow of God"`, "due on 2024-09-15"},
		},
		{
			name:     "plain body",
			msg:      core.EmailMessage{To: to, Subject: "Hello", BodyStr: "Hello there"},
			wantSent: true,
			contains: []string{"Hello there"},
		},
		{
			name:     "no recipients",
			msg:      core.EmailMessage{Subject: "Hello", BodyStr: "Hello there"},
			wantSent: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ResetSentMessages()
			msg := tt.msg
			svc.SendMessages(&msg)

			sent, ok := LastSentMessage()
			require.Equal(t, tt.wantSent, ok)
			for _, s := range tt.contains {
				assert.Contains(t, sent.TextContent, s)
			}
			if tt.msg.TemplateName != "" {
				assert.NotEmpty(t, sent.HTMLContent)
			}
		})
	}
}
