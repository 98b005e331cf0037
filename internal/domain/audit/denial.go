package audit

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/medicore/medicore/internal/platform/auth"
)

// DenialRecorder adapts the trail service to the role middleware's
// recorder contract, so every 403 lands in the trail as an
// access_denied row carrying the actor, the roles the route required
// and the endpoint.
func DenialRecorder(svc *Service) auth.DenialRecorderFunc {
	return func(ctx context.Context, d auth.Denial) {
		var actor *uuid.UUID
		if id, err := uuid.Parse(d.AccountID); err == nil {
			actor = &id
		}
		svc.Record(ctx, Entry{
			ActorID:  actor,
			Action:   ActionAccessDenied,
			Resource: d.Path,
			Detail: fmt.Sprintf("role %s denied %s %s, requires %s",
				d.Role, d.Method, d.Path, strings.Join(d.RequiredRoles, " or ")),
			IP:        d.IP,
			UserAgent: d.UserAgent,
			RequestID: d.RequestID,
		})
	}
}
