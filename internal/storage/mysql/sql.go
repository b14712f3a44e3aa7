package mysql

const createTableSQL = `
CREATE TABLE IF NOT EXISTS place_identifiers (
  slug        VARCHAR(255) NOT NULL PRIMARY KEY,
  place_id    INT          NOT NULL,
  resolved_at TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP,
  updated_at  TIMESTAMP    NOT NULL DEFAULT CURRENT_TIMESTAMP ON UPDATE CURRENT_TIMESTAMP
)
`

const upsertIdentifierSQL = `
INSERT INTO place_identifiers (slug, place_id)
VALUES (?, ?)
ON DUPLICATE KEY UPDATE
  place_id   = VALUES(place_id),
  updated_at = CURRENT_TIMESTAMP
`

const getIdentifierSQL = `
SELECT place_id FROM place_identifiers WHERE slug = ?
`

const allIdentifiersSQL = `
SELECT slug, place_id FROM place_identifiers
`
