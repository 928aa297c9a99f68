package user

import (
	"github.com/trezcool/shule/core"
)

type serviceMock struct {
	*service
}

// NewServiceMock returns a Service that sends its e-mails synchronously.
func NewServiceMock(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{service: newService(db, repo, mailSvc, conf)}
}

func (svc *serviceMock) RequestPasswordReset(email string) error {
	usr, err := svc.GetByEmail(email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}
	// run synchronously
	svc.sendPasswordResetMail(usr)
	return nil
}
