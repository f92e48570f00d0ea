package bot

import (
	"fmt"
	"io"
	"strings"
	"time"

	"log/slog"

	"github.com/parnamyadak/partsbot/internal/domain"
	"github.com/parnamyadak/partsbot/internal/logger"
	"github.com/parnamyadak/partsbot/internal/panel"
	"github.com/parnamyadak/partsbot/internal/session"

	tele "gopkg.in/telebot.v4"
)

// promptFor returns the question for a registration step. The address step
// is shared between roles but worded differently.
func promptFor(role domain.Role, step session.RegistrationStep) string {
	switch step {
	case session.StepFullName:
		return msgAskFullName
	case session.StepMobile:
		return msgAskMobile
	case session.StepCardNumber:
		return msgAskCardNumber
	case session.StepSheba:
		return msgAskSheba
	case session.StepLicense:
		return msgAskLicense
	case session.StepFirstName:
		return msgAskFirstName
	case session.StepPhone:
		return msgAskPhone
	case session.StepProvince:
		return msgAskProvince
	case session.StepCity:
		return msgAskCity
	case session.StepPostalCode:
		return msgAskPostalCode
	case session.StepAddress:
		if role == domain.RoleMechanic {
			return msgAskAddress
		}
		return msgAskHomeAddr
	default:
		return msgMenuPrompt
	}
}

func (b *Bot) startRegistration(c tele.Context, role domain.Role) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "registration.start"))
	userID := senderID(c)

	user := b.resolveUser(ctx, userID)
	switch user.State {
	case domain.UserStatePending:
		return c.Send(msgAlreadyPending)
	case domain.UserStateApproved:
		return c.Send(msgAlreadyApproved, MenuFor(user.State))
	}

	reg := b.sessions.StartRegistration(userID, role)
	logger.Info(ctx, "telegram", "registration.start",
		slog.String("role", string(role)),
	)
	return c.Send(promptFor(role, reg.Step), RemoveKeyboard())
}

// startReRegistration lets a rejected user try again with the same role.
func (b *Bot) startReRegistration(c tele.Context) error {
	ctx := BuildContext(c)
	userID := senderID(c)

	role := domain.RoleMechanic
	if cached, err := b.store.UserStatus(userID); err == nil && cached.Role != "" {
		role = cached.Role
	}

	reg := b.sessions.StartRegistration(userID, role)
	logger.Info(ctx, "telegram", "registration.restart",
		slog.String("role", string(role)),
	)
	return c.Send(promptFor(role, reg.Step), RemoveKeyboard())
}

func (b *Bot) handleRegistrationText(c tele.Context, reg *session.Registration, text string) error {
	if err := reg.Apply(text); err != nil {
		return c.Send(promptFor(reg.Role, reg.Step))
	}
	if reg.Step == session.StepDone {
		return b.finishCustomerRegistration(c, reg)
	}
	return c.Send(promptFor(reg.Role, reg.Step))
}

func (b *Bot) handleLicensePhoto(c tele.Context, reg *session.Registration, fileID string) error {
	if err := reg.SetLicense(fileID); err != nil {
		return c.Send(msgAskLicense)
	}
	return b.finishMechanicRegistration(c, reg)
}

func (b *Bot) finishMechanicRegistration(c tele.Context, reg *session.Registration) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "registration.mechanic"))
	userID := senderID(c)

	if missing := reg.Missing(); len(missing) > 0 {
		return c.Send("❌ اطلاعات ناقص است: " + strings.Join(missing, "، "))
	}

	image, err := b.downloadFile(reg.LicenseFileID)
	if err != nil {
		logger.Error(ctx, "telegram", "license.download",
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgAskLicense)
	}

	firstName, lastName := splitName(reg.Field(session.StepFullName))
	submission := panel.MechanicRegistration{
		TelegramID:   userID,
		Username:     senderUsername(c),
		FirstName:    firstName,
		LastName:     lastName,
		Phone:        reg.Field(session.StepMobile),
		CardNumber:   reg.Field(session.StepCardNumber),
		ShebaNumber:  reg.Field(session.StepSheba),
		ShopAddress:  reg.Field(session.StepAddress),
		LicenseImage: image,
		LicenseName:  fmt.Sprintf("license_%d.jpg", userID),
	}

	if err := b.panel.RegisterMechanic(ctx, submission); err != nil {
		logger.Error(ctx, "telegram", "registration.submit",
			slog.String("role", "mechanic"),
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgPanelDown)
	}

	status := domain.UserStatus{
		TelegramID: userID,
		Role:       domain.RoleMechanic,
		State:      domain.UserStatePending,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := b.store.SetUserStatus(status); err != nil {
		logger.Error(ctx, "telegram", "user.status.persist",
			slog.String("err", err.Error()),
		)
	}

	if err := b.panel.NotifyMechanicRegistered(ctx, userID); err != nil {
		logger.Warn(ctx, "telegram", "registration.notify",
			slog.String("err", sanitizeErrorMessage(err)),
		)
	}

	b.sessions.Clear(userID)
	logger.Info(ctx, "telegram", "registration.submitted",
		slog.String("role", "mechanic"),
	)
	return c.Send(msgMechanicPending, MenuFor(domain.UserStatePending))
}

func (b *Bot) finishCustomerRegistration(c tele.Context, reg *session.Registration) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "registration.customer"))
	userID := senderID(c)

	submission := panel.CustomerRegistration{
		TelegramID: userID,
		Username:   senderUsername(c),
		FirstName:  reg.Field(session.StepFirstName),
		Phone:      reg.Field(session.StepPhone),
		Province:   reg.Field(session.StepProvince),
		City:       reg.Field(session.StepCity),
		PostalCode: reg.Field(session.StepPostalCode),
		Address:    reg.Field(session.StepAddress),
	}

	if err := b.panel.RegisterCustomer(ctx, submission); err != nil {
		logger.Error(ctx, "telegram", "registration.submit",
			slog.String("role", "customer"),
			slog.String("err", sanitizeErrorMessage(err)),
		)
		return c.Send(msgPanelDown)
	}

	status := domain.UserStatus{
		TelegramID: userID,
		Role:       domain.RoleCustomer,
		State:      domain.UserStateApproved,
		UpdatedAt:  time.Now().UTC(),
	}
	if err := b.store.SetUserStatus(status); err != nil {
		logger.Error(ctx, "telegram", "user.status.persist",
			slog.String("err", err.Error()),
		)
	}

	b.sessions.Clear(userID)
	logger.Info(ctx, "telegram", "registration.submitted",
		slog.String("role", "customer"),
	)
	return c.Send(msgCustomerWelcome, MenuFor(domain.UserStateApproved))
}

// handleRegistrationInfo reports where a pending registration stands.
func (b *Bot) handleRegistrationInfo(c tele.Context) error {
	ctx := StoreContext(c, logger.WithHandler(BuildContext(c), "registration.info"))
	user := b.resolveUser(ctx, senderID(c))

	switch user.State {
	case domain.UserStateApproved:
		return c.Send(msgAlreadyApproved, MenuFor(user.State))
	case domain.UserStateRejected:
		return c.Send("❌ ثبت‌نام شما تایید نشد. می‌توانید مجدداً ثبت‌نام کنید.", MenuFor(user.State))
	case domain.UserStatePending:
		return c.Send(msgAlreadyPending)
	default:
		return c.Send(msgMenuPrompt, MenuFor(user.State))
	}
}

func (b *Bot) downloadFile(fileID string) ([]byte, error) {
	rc, err := b.tb.File(&tele.File{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("fetch file: %w", err)
	}
	defer func() { _ = rc.Close() }()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return data, nil
}

func senderUsername(c tele.Context) string {
	if s := c.Sender(); s != nil {
		return s.Username
	}
	return ""
}

func splitName(full string) (first, last string) {
	parts := strings.Fields(full)
	if len(parts) == 0 {
		return "", ""
	}
	return parts[0], strings.Join(parts[1:], " ")
}
