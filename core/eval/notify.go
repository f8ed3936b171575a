package eval

import (
	"fmt"
	"net/mail"

	"github.com/Maad-exe/projectgo/core"
)

// EmailNotifier emails students when one of their evaluations completes.
// Notification failures are logged and never fail the submission that
// triggered them.
type EmailNotifier struct {
	mailSvc core.EmailService
	users   Directory
	logger  core.Logger
}

var _ Notifier = (*EmailNotifier)(nil)

func NewEmailNotifier(mailSvc core.EmailService, users Directory, logger core.Logger) *EmailNotifier {
	return &EmailNotifier{mailSvc: mailSvc, users: users, logger: logger}
}

func (n *EmailNotifier) EvaluationCompleted(studentID int, eventName string, obtained, total int) {
	addr, err := n.users.EmailAddress(studentID)
	if err != nil {
		n.logger.Warn(fmt.Sprintf("notifying student %d: %v", studentID, err))
		return
	}
	name, err := n.users.DisplayName(studentID)
	if err != nil {
		name = ""
	}

	n.mailSvc.SendMessages(&core.EmailMessage{
		To:      []mail.Address{{Name: name, Address: addr}},
		Subject: fmt.Sprintf("Evaluation complete: %s", eventName),
		TextContent: fmt.Sprintf(
			"Your evaluation for %q is complete. You scored %d out of %d marks.\n"+
				"Log in to view the panel's combined feedback.",
			eventName, obtained, total),
	})
}
