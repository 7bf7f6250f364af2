package user

import (
	"context"

	"github.com/darasahq/darasa/core"
)

type serviceMock struct {
	service
}

// NewServiceMock returns a Service whose side-effectful paths run synchronously.
func NewServiceMock(repo Repository, mailSvc core.EmailService, conf *core.Config) Service {
	return &serviceMock{
		service: service{
			repo:    repo,
			mailSvc: mailSvc,
			conf:    conf,
		},
	}
}

func (svc *serviceMock) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.Active() {
		return ErrNotFound
	}
	// run synchronously
	svc.mailSvc.SendMessages(svc.passwordResetMail(usr))
	return nil
}

// MakeResetToken exposes reset-token generation to API tests.
func MakeResetToken(usr User) string {
	return makeToken(usr)
}
