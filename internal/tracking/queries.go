package tracking

import (
	"fmt"
	"strings"

	"backend-trackbench/internal/aggregate"
)

const lapsFrom = `
	FROM tracking t
	JOIN users u ON u.user_id = t.user_id
	JOIN track tr ON tr.track_id = t.track_id
	LEFT JOIN event e ON e.event_id = t.event_id`

// lapSeconds drops sub-second precision the same way timeconv does.
const lapSeconds = `COALESCE(FLOOR(EXTRACT(EPOCH FROM t.time)), 0)::float8`

// where renders the filter as a WHERE clause with positional args.
func where(f aggregate.Filter) (string, []any) {
	from, to := f.Bounds()
	conds := []string{"t.start_date_time >= $1", "t.start_date_time < $2"}
	args := []any{from, to}
	if f.Gender != "" {
		args = append(args, f.Gender)
		conds = append(conds, fmt.Sprintf("u.gender = $%d", len(args)))
	}
	return "WHERE " + strings.Join(conds, " AND "), args
}

func rawRowsQuery(f aggregate.Filter) (string, []any) {
	cond, args := where(f)
	return `
	SELECT t.tracking_id::text, t.start_date_time, t.time, tr.distance::float8, e.name, u.username` +
		lapsFrom + `
	` + cond + `
	ORDER BY t.tracking_id`, args
}

func noneQuery(f aggregate.Filter, p aggregate.Params) (string, []any) {
	cond, args := where(f)
	order := "t.start_date_time DESC, t.tracking_id"
	if p.OrderBy == aggregate.OrderBest {
		order = "seconds, t.tracking_id"
	}
	args = append(args, p.Limit)
	return fmt.Sprintf(`
	SELECT t.tracking_id::text, t.start_date_time, %s AS seconds, tr.distance::float8, e.name, u.username%s
	%s
	ORDER BY %s
	LIMIT $%d`, lapSeconds, lapsFrom, cond, order, len(args)), args
}

func allQuery(f aggregate.Filter, p aggregate.Params) (string, []any) {
	cond, args := where(f)
	args = append(args, p.Limit)
	return fmt.Sprintf(`
	SELECT u.username,
	       SUM(tr.distance)::float8 AS km_total,
	       SUM(%s)::float8 AS time_total,
	       COUNT(t.tracking_id) AS rounds
	FROM tracking t
	JOIN users u ON u.user_id = t.user_id
	JOIN track tr ON tr.track_id = t.track_id
	%s
	GROUP BY u.username
	ORDER BY SUM(tr.distance) DESC, MIN(t.tracking_id::text COLLATE "C")
	LIMIT $%d`, lapSeconds, cond, len(args)), args
}

// behindQuery walks the laps in (username, start) order with a recursive CTE,
// carrying the session seed and its accumulated seconds, so the merge rule is
// the same sequential fold the engine runs.
func behindQuery(f aggregate.Filter, p aggregate.Params, tolerance float64) (string, []any) {
	cond, args := where(f)
	args = append(args, tolerance)
	tol := len(args)
	args = append(args, p.Limit)
	limit := len(args)

	merge := fmt.Sprintf(`(l.username IS NOT DISTINCT FROM w.username
	       AND abs(EXTRACT(EPOCH FROM (w.seed_start - l.start_date_time)) + w.total) <= $%d)`, tol)

	order := "l.start_date_time DESC, s.seed"
	if p.OrderBy == aggregate.OrderBest {
		order = "s.rounds DESC, s.total, s.seed"
	}

	return fmt.Sprintf(`
	WITH RECURSIVE laps AS (
		SELECT t.tracking_id, t.start_date_time, %[1]s AS seconds,
		       tr.distance::float8 AS km, e.name AS event_name, u.username,
		       ROW_NUMBER() OVER (ORDER BY u.username COLLATE "C" NULLS FIRST, t.start_date_time, t.tracking_id) AS rn%[2]s
		%[3]s
	), walk AS (
		SELECT rn, username, rn AS seed, start_date_time AS seed_start, seconds AS total
		FROM laps WHERE rn = 1
		UNION ALL
		SELECT l.rn, l.username,
		       CASE WHEN %[4]s THEN w.seed ELSE l.rn END,
		       CASE WHEN %[4]s THEN w.seed_start ELSE l.start_date_time END,
		       CASE WHEN %[4]s THEN w.total + l.seconds ELSE l.seconds END
		FROM walk w
		JOIN laps l ON l.rn = w.rn + 1
	)
	SELECT l.tracking_id::text, l.start_date_time, s.total, l.km, l.event_name, l.username, s.rounds
	FROM (SELECT seed, MAX(total) AS total, COUNT(*) AS rounds FROM walk GROUP BY seed) s
	JOIN laps l ON l.rn = s.seed
	ORDER BY %[5]s
	LIMIT $%[6]d`, lapSeconds, lapsFrom, cond, merge, order, limit), args
}
