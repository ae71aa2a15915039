package pgx

import (
	"context"
	"fmt"

	"github.com/Bunka-lab/epstein-files/pkg/common"
)

// LoadDiscussions reads the full discussion snapshot ordered by thread id.
func (s *PipelineDBStorage) LoadDiscussions(ctx context.Context) ([]common.Discussion, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT thread_id, sender, receiver, cc, body
		 FROM discussions
		 ORDER BY thread_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query discussions: %w", err)
	}
	defer rows.Close()

	var discussions []common.Discussion
	for rows.Next() {
		var d common.Discussion
		if err := rows.Scan(&d.ThreadID, &d.Sender, &d.Receiver, &d.CC, &d.Body); err != nil {
			return nil, fmt.Errorf("failed to scan discussion: %w", err)
		}
		discussions = append(discussions, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read discussions: %w", err)
	}
	return discussions, nil
}

// SaveDiscussions upserts discussions by thread id, for loading a corpus
// into an empty database.
func (s *PipelineDBStorage) SaveDiscussions(ctx context.Context, discussions []common.Discussion) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	for _, d := range discussions {
		_, err := s.conn.Exec(ctx,
			`INSERT INTO discussions (thread_id, sender, receiver, cc, body)
			 VALUES ($1, $2, $3, $4, $5)
			 ON CONFLICT (thread_id) DO UPDATE SET
				sender = EXCLUDED.sender,
				receiver = EXCLUDED.receiver,
				cc = EXCLUDED.cc,
				body = EXCLUDED.body`,
			d.ThreadID, sanitize(d.Sender), sanitize(d.Receiver), sanitize(d.CC), sanitize(d.Body))
		if err != nil {
			return fmt.Errorf("failed to upsert discussion %s: %w", d.ThreadID, err)
		}
	}
	return nil
}
