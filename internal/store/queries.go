// SPDX-License-Identifier: Apache-2.0

package store

const (
	insertRecord = `
		INSERT INTO records (
			id,
			owner_id,
			entity_type,
			payload,
			sync_state,
			created_at,
			updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?);`

	getRecord = `
		SELECT
			id,
			owner_id,
			entity_type,
			payload,
			sync_state,
			created_at,
			updated_at
		FROM records
		WHERE id = ?;`

	updateRecord = `
		UPDATE records SET
			payload    = ?,
			sync_state = ?,
			updated_at = ?
		WHERE id = ?;`

	deleteRecord = `
		DELETE FROM records WHERE id = ?;`

	setRecordSyncState = `
		UPDATE records SET sync_state = ? WHERE id = ?;`

	setRecordOwner = `
		UPDATE records SET owner_id = ?, updated_at = ? WHERE id = ?;`

	saveRecordPayload = `
		UPDATE records SET payload = ?, updated_at = ? WHERE id = ?;`

	countRecordsByType = `
		SELECT COUNT(*) FROM records WHERE owner_id = ? AND entity_type = ?;`

	evictSyncedRecords = `
		DELETE FROM records
		WHERE id IN (
			SELECT id FROM records
			WHERE owner_id = ? AND entity_type = ? AND sync_state = 'synced'
			ORDER BY updated_at ASC
			LIMIT ?
		);`

	insertQueueItem = `
		INSERT INTO sync_queue (
			id,
			entity_type,
			action,
			record_id,
			payload_snapshot,
			enqueued_at,
			retry_count
		) VALUES (?, ?, ?, ?, ?, ?, ?);`

	listQueueItems = `
		SELECT
			seq,
			id,
			entity_type,
			action,
			record_id,
			payload_snapshot,
			enqueued_at,
			retry_count
		FROM sync_queue
		ORDER BY seq ASC;`

	removeQueueItem = `
		DELETE FROM sync_queue WHERE seq = ?;`

	incrementQueueRetry = `
		UPDATE sync_queue SET retry_count = retry_count + 1 WHERE seq = ?;`

	getQueueRetry = `
		SELECT retry_count FROM sync_queue WHERE seq = ?;`

	countQueueItems = `
		SELECT COUNT(*) FROM sync_queue;`

	saveSession = `
		INSERT INTO sessions (
			id,
			started_at,
			last_active_at,
			is_active,
			exercise_id,
			progress,
			check_ins,
			completed_at,
			outcome,
			notes
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET
			last_active_at = excluded.last_active_at,
			is_active      = excluded.is_active,
			exercise_id    = excluded.exercise_id,
			progress       = excluded.progress,
			check_ins      = excluded.check_ins,
			completed_at   = excluded.completed_at,
			outcome        = excluded.outcome,
			notes          = excluded.notes;`

	getSession = `
		SELECT
			id,
			started_at,
			last_active_at,
			is_active,
			exercise_id,
			progress,
			check_ins,
			completed_at,
			outcome,
			notes
		FROM sessions
		WHERE id = ?;`

	listSessionHistory = `
		SELECT
			id,
			started_at,
			last_active_at,
			is_active,
			exercise_id,
			progress,
			check_ins,
			completed_at,
			outcome,
			notes
		FROM sessions
		ORDER BY started_at DESC
		LIMIT ?;`

	evictSessionHistory = `
		DELETE FROM sessions
		WHERE is_active = 0
		  AND id IN (
			SELECT id FROM sessions
			WHERE is_active = 0
			ORDER BY started_at ASC
			LIMIT ?
		);`

	countEndedSessions = `
		SELECT COUNT(*) FROM sessions WHERE is_active = 0;`

	getStateSlot = `
		SELECT value FROM app_state WHERE key = ?;`

	setStateSlot = `
		INSERT INTO app_state (key, value, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET
			value      = excluded.value,
			updated_at = excluded.updated_at;`

	clearStateSlot = `
		DELETE FROM app_state WHERE key = ?;`
)
