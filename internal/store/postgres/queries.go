package postgres

const queryInsertReminder = `
INSERT INTO reminders (id, requester, recipient, channel_id, target_at, message, source, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
`

const queryMarkTerminal = `
UPDATE reminders
SET status = $1, fired_at = $2
WHERE id = $3
  AND status NOT IN ('fired', 'cancelled', 'failed')
`

const queryGetReminderState = `
SELECT status FROM reminders WHERE id = $1
`

const queryGetPendingReminders = `
SELECT id, requester, recipient, channel_id, target_at, message, source, status, created_at
FROM reminders
WHERE status = 'scheduled'
ORDER BY target_at ASC
LIMIT $1 OFFSET $2
`

const queryListForActor = `
SELECT id, requester, recipient, channel_id, target_at, message, source, status, created_at
FROM reminders
WHERE requester = $1
ORDER BY created_at DESC
LIMIT $2 OFFSET $3
`

const queryGetReminderByID = `
SELECT id, requester, recipient, channel_id, target_at, message, source, status, created_at
FROM reminders
WHERE id = $1
`
