package usecase

import (
	"context"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// OnboardingUseCase registers people who talk to the bot so they can receive
// proactive messages later.
type OnboardingUseCase struct {
	repo     interfaces.Repository
	deps     dependencies
	identity *IdentityUseCase
}

// ValidateActivity checks the fields every handled activity needs.
func ValidateActivity(a *model.Activity) error {
	switch {
	case a == nil:
		return goerr.Wrap(ErrInvalidActivity, "activity is empty")
	case a.Type == "":
		return goerr.Wrap(ErrInvalidActivity, "activity type is missing")
	case a.From == nil || a.From.ID == "":
		return goerr.Wrap(ErrInvalidActivity, "activity has no sender", goerr.V("type", a.Type))
	case a.Conversation == nil || a.Conversation.ID == "":
		return goerr.Wrap(ErrInvalidActivity, "activity has no conversation", goerr.V("type", a.Type))
	case a.ServiceURL == "":
		return goerr.Wrap(ErrInvalidActivity, "activity has no serviceUrl", goerr.V("type", a.Type))
	}
	return nil
}

// HandleActivity onboards the sender of a message or the members added by a
// conversation update. Other activity types are ignored.
func (uc *OnboardingUseCase) HandleActivity(ctx context.Context, a *model.Activity) error {
	if err := ValidateActivity(a); err != nil {
		return err
	}
	logger := logging.From(ctx).With("activity_type", a.Type, "activity_id", a.ID)

	var users []model.ChannelAccount
	switch a.Type {
	case model.ActivityTypeMessage:
		users = []model.ChannelAccount{*a.From}
	case model.ActivityTypeConversationUpdate:
		users = a.AddedUsers()
	default:
		logger.Debug("ignoring activity")
		return nil
	}
	if len(users) == 0 {
		return nil
	}

	if uc.deps.connector == nil {
		return goerr.Wrap(ErrNotConfigured, "bot connector is not configured")
	}

	for _, user := range users {
		if err := uc.onboard(ctx, a, user); err != nil {
			return err
		}
	}
	return nil
}

func (uc *OnboardingUseCase) onboard(ctx context.Context, a *model.Activity, user model.ChannelAccount) error {
	logger := logging.From(ctx)

	upn, name, err := uc.resolveUPN(ctx, a, user)
	if err != nil {
		return err
	}
	accountID, err := types.NewAccountID(upn)
	if err != nil {
		return goerr.Wrap(ErrInvalidActivity, "cannot derive account ID", goerr.V("upn", upn), goerr.V("error", err.Error()))
	}

	handle := &model.ConversationHandle{
		AccountID:      accountID,
		ServiceURL:     a.ServiceURL,
		ConversationID: a.Conversation.ID,
		TenantID:       a.TenantID(),
		UserID:         user.ID,
		UserName:       name,
		AADObjectID:    user.AADObjectID,
		UpdatedAt:      uc.deps.clock(),
	}
	if a.Recipient != nil {
		handle.BotID = a.Recipient.ID
		handle.BotName = a.Recipient.Name
	}
	if err := uc.repo.Conversation().Put(ctx, handle); err != nil {
		return goerr.Wrap(err, "failed to save conversation handle", goerr.V(AccountIDKey, accountID))
	}
	logger.Info("conversation handle saved", "account_id", accountID, "conversation_id", a.Conversation.ID)

	welcome := welcomeData{DisplayName: name}
	if dirUser, ok := uc.lookupDirectory(ctx, accountID); ok {
		if dirUser.DisplayName != "" {
			welcome.DisplayName = dirUser.DisplayName
		}
		if dirUser.EmployeeID != "" {
			if _, err := uc.identity.Upsert(ctx, accountID.String(), types.SubjectID(dirUser.EmployeeID), welcome.DisplayName); err != nil {
				return err
			}
			welcome.EmployeeID = dirUser.EmployeeID
		}
	}
	if welcome.DisplayName == "" {
		welcome.DisplayName = accountID.String()
	}

	body, err := render(tmplWelcome, welcome)
	if err != nil {
		return err
	}
	if err := uc.deps.connector.Reply(ctx, a, body); err != nil {
		// the handle is already stored; a lost welcome is not worth failing the request
		logger.Warn("failed to send welcome message", "error", err, "account_id", accountID)
	}
	return nil
}

// resolveUPN asks the connector for the member's UPN and falls back to the
// AAD object ID when that already has the user@domain form.
func (uc *OnboardingUseCase) resolveUPN(ctx context.Context, a *model.Activity, user model.ChannelAccount) (string, string, error) {
	member, err := uc.deps.connector.GetMember(ctx, a.ServiceURL, a.Conversation.ID, user.ID)
	if err != nil {
		logging.From(ctx).Warn("failed to get member from connector", "error", err, "user_id", user.ID)
	}
	if err == nil && member != nil {
		upn := member.UserPrincipalName
		if upn == "" {
			upn = member.Email
		}
		if upn != "" {
			name := member.Name
			if name == "" {
				name = user.Name
			}
			return upn, name, nil
		}
	}

	if types.LooksLikeUPN(user.AADObjectID) {
		return user.AADObjectID, user.Name, nil
	}
	return "", "", goerr.Wrap(ErrInvalidActivity, "cannot resolve user principal name",
		goerr.V("user_id", user.ID), goerr.V("aad_object_id", user.AADObjectID))
}

func (uc *OnboardingUseCase) lookupDirectory(ctx context.Context, accountID types.AccountID) (*model.DirectoryUser, bool) {
	if uc.deps.directory == nil {
		return nil, false
	}
	user, err := uc.deps.directory.LookupUser(ctx, accountID.String())
	if err != nil {
		logging.From(ctx).Warn("failed to look up directory user", "error", err, "account_id", accountID)
		return nil, false
	}
	if user == nil {
		return nil, false
	}
	return user, true
}
