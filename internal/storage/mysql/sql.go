package mysql

const upsertCycleSQL = `
INSERT INTO cycles
  (id, origin_lat, origin_lng, reason, queries_total, queries_completed, started_at, finished_at)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  reason            = VALUES(reason),
  queries_completed = VALUES(queries_completed),
  finished_at       = VALUES(finished_at),
  updated_at        = CURRENT_TIMESTAMP
`

const deleteCyclePlacesSQL = `DELETE FROM cycle_places WHERE cycle_id = ?`

// `position` keeps the ranked order; rows are rewritten whole on every save.
const insertCyclePlacesPrefix = "INSERT INTO cycle_places\n  (cycle_id, `position`, place_id, name, address, types, lat, lng, rating, matched_term, confidence)\nVALUES "

// -----------------------------------------------------------------------------
// READ QUERIES
// -----------------------------------------------------------------------------

const getCycleSQL = `
SELECT
  id,
  origin_lat,
  origin_lng,
  reason,
  queries_total,
  queries_completed,
  started_at,
  finished_at
FROM cycles
WHERE id = ?
`

const listCyclePlacesSQL = "SELECT\n" +
	"  place_id, name, address, types, lat, lng, rating, matched_term, confidence\n" +
	"FROM cycle_places\n" +
	"WHERE cycle_id = ?\n" +
	"ORDER BY `position`"
