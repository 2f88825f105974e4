package ticket

import (
	"context"
	"fmt"
)

// historyPageSize is the bounded page size the platform exposes for
// channel history reads.
const historyPageSize = 100

// FetchHistory retrieves the complete message history of a channel,
// oldest first. The platform serves bounded pages newest-first with a
// "before" cursor, so we walk backwards accumulating pages until a short
// page signals exhaustion, then reverse once. Reads go straight to the
// platform: the result must reflect the channel's true state at closure
// time, so no cache sits in between.
//
// Any page-fetch error aborts the whole fetch; a partial transcript is
// worse than none.
func FetchHistory(ctx context.Context, p Platform, channelID string) ([]Message, error) {
	var all []Message
	beforeID := ""

	for {
		page, err := p.Messages(ctx, channelID, historyPageSize, beforeID)
		if err != nil {
			return nil, fmt.Errorf("ticket: fetch history for %s: %w", channelID, err)
		}
		if len(page) == 0 {
			break
		}

		all = append(all, page...)
		beforeID = page[len(page)-1].ID

		if len(page) < historyPageSize {
			break
		}
	}

	// Pages arrive newest-first; one reversal yields chronological order.
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return all, nil
}
