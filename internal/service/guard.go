package service

import (
	"errors"

	"github.com/tgardela/event-manager/internal/auth"
	"github.com/tgardela/event-manager/internal/model"
)

// ErrPermissionDenied is returned when someone other than the creator tries
// to change an event.
var ErrPermissionDenied = errors.New("To update an event, you must be the creator of that event.")

// AuthorizeMutation allows only the event's creator to update it.
func AuthorizeMutation(e *model.Event, actor auth.Principal) error {
	if actor.UserID == "" || e.CreatorID != actor.UserID {
		return ErrPermissionDenied
	}
	return nil
}
