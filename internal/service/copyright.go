package service

import (
	"clouddb/internal/core"
	"fmt"
	"time"

	"github.com/google/uuid"
)

const contentTypeDatabase = "database"

// CheckDuplicateName flags content whose name is already used by another
// user's database, ignoring case. The strike is appended to g and returned; it
// never blocks the caller.
func CheckDuplicateName(g *core.Graph, userID, name, contentID, contentType string, now time.Time) *core.CopyrightStrike {
	for _, d := range g.Databases {
		if d.UserID == userID || !core.SameName(d.Name, name) {
			continue
		}
		strike := core.CopyrightStrike{
			ID:           uuid.NewString(),
			UserID:       userID,
			ContentType:  contentType,
			ContentID:    contentID,
			ContentName:  name,
			StrikeReason: fmt.Sprintf(`Duplicate content detected: "%s" already exists under another user.`, name),
			Status:       core.StrikeActive,
			CreatedAt:    core.Stamp(now),
		}
		g.CopyrightStrikes = append(g.CopyrightStrikes, strike)
		return &strike
	}
	return nil
}
