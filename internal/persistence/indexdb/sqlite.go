package indexdb

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"

	"voxelgather.ai/internal/protocol"
	"voxelgather.ai/internal/sim/catalogs"
	"voxelgather.ai/internal/sim/tuning"
)

// SQLiteIndex is a queryable secondary index of task outcomes, task events and
// item audits. Writes are queued and applied by one goroutine; when the queue
// is full the record is dropped and counted. The JSONL logs stay the source of
// truth.
type SQLiteIndex struct {
	db *sql.DB

	ch   chan req
	wg   sync.WaitGroup
	once sync.Once

	closed atomic.Bool

	dropOutcome atomic.Uint64
	dropEvent   atomic.Uint64
	dropAudit   atomic.Uint64
}

type reqKind int

const (
	reqOutcome reqKind = iota + 1
	reqEvent
	reqAudit
)

type req struct {
	kind    reqKind
	outcome TaskOutcome
	event   eventRow
	audit   ItemAudit
}

// TaskOutcome is the final state of one gather task.
type TaskOutcome struct {
	TaskID    string
	AgentID   string
	Target    string
	State     string
	Code      string
	Reason    string
	Mined     int
	Desired   int
	StartTick uint64
	EndTick   uint64
}

type eventRow struct {
	Tick    uint64
	AgentID string
	TaskID  string
	Type    string
	Raw     string
}

type ItemAudit struct {
	Tick     uint64
	Action   string
	Pos      [3]int
	EntityID string
	Item     string
	Count    int
}

type Stats struct {
	QueueDepth       int
	QueueCapacity    int
	DropOutcomeTotal uint64
	DropEventTotal   uint64
	DropAuditTotal   uint64
}

const defaultQueue = 65536

func OpenSQLite(path string) (*SQLiteIndex, error) {
	return openSQLite(path, defaultQueue)
}

func openSQLite(path string, queue int) (*SQLiteIndex, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	s := &SQLiteIndex{db: db, ch: make(chan req, queue)}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.loop()
	}()
	return s, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS catalogs (
			name TEXT PRIMARY KEY,
			digest TEXT NOT NULL,
			json TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS task_outcomes (
			task_id TEXT PRIMARY KEY,
			agent_id TEXT NOT NULL,
			target TEXT NOT NULL,
			state TEXT NOT NULL,
			code TEXT,
			reason TEXT,
			mined INTEGER NOT NULL,
			desired INTEGER NOT NULL,
			start_tick INTEGER NOT NULL,
			end_tick INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_outcomes_agent ON task_outcomes(agent_id, end_tick);`,
		`CREATE TABLE IF NOT EXISTS task_events (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			agent_id TEXT NOT NULL,
			task_id TEXT NOT NULL,
			type TEXT NOT NULL,
			raw_json TEXT NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_task_events_task ON task_events(task_id, tick);`,
		`CREATE TABLE IF NOT EXISTS item_audits (
			tick INTEGER NOT NULL,
			seq INTEGER NOT NULL,
			action TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			z INTEGER NOT NULL,
			entity_id TEXT,
			item TEXT NOT NULL,
			count INTEGER NOT NULL,
			PRIMARY KEY (tick, seq)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_item_audits_pos ON item_audits(x, z, y, tick);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteIndex) Close() error {
	var err error
	s.once.Do(func() {
		s.closed.Store(true)
		close(s.ch)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func (s *SQLiteIndex) RecordOutcome(o TaskOutcome) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqOutcome, outcome: o}:
	default:
		s.dropOutcome.Add(1)
	}
}

func (s *SQLiteIndex) WriteEvent(agentID string, e protocol.Event) {
	if s == nil || s.closed.Load() {
		return
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return
	}
	r := eventRow{AgentID: agentID, Type: e.Type(), Raw: string(raw)}
	if t, ok := e["t"].(uint64); ok {
		r.Tick = t
	}
	if id, ok := e["task_id"].(string); ok {
		r.TaskID = id
	}
	select {
	case s.ch <- req{kind: reqEvent, event: r}:
	default:
		s.dropEvent.Add(1)
	}
}

func (s *SQLiteIndex) WriteItemAudit(a ItemAudit) {
	if s == nil || s.closed.Load() {
		return
	}
	select {
	case s.ch <- req{kind: reqAudit, audit: a}:
	default:
		s.dropAudit.Add(1)
	}
}

func (s *SQLiteIndex) Stats() Stats {
	if s == nil {
		return Stats{}
	}
	return Stats{
		QueueDepth:       len(s.ch),
		QueueCapacity:    cap(s.ch),
		DropOutcomeTotal: s.dropOutcome.Load(),
		DropEventTotal:   s.dropEvent.Load(),
		DropAuditTotal:   s.dropAudit.Load(),
	}
}

// UpsertCatalogs stores the palettes and applied tuning with their digests, so
// rows can be tied back to the exact configuration that produced them.
func (s *SQLiteIndex) UpsertCatalogs(cats *catalogs.Catalogs, tune tuning.Tuning) error {
	if s == nil {
		return nil
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	type kv struct {
		name   string
		digest string
		json   []byte
	}
	var rows []kv
	if b, _ := json.Marshal(cats.Blocks.Palette); len(b) > 0 {
		rows = append(rows, kv{"blocks_palette", cats.Blocks.PaletteDigest, b})
	}
	if b, _ := json.Marshal(cats.Items.Palette); len(b) > 0 {
		rows = append(rows, kv{"items_palette", cats.Items.PaletteDigest, b})
	}
	if b, err := json.Marshal(tune); err == nil {
		sum := sha256.Sum256(b)
		rows = append(rows, kv{"tuning", hex.EncodeToString(sum[:]), b})
	}

	tx, err := s.db.BeginTx(context.Background(), nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec(`INSERT OR REPLACE INTO meta(key,value) VALUES('schema_version','1')`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`INSERT OR REPLACE INTO catalogs(name,digest,json,updated_at) VALUES(?,?,?,?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, r := range rows {
		if r.digest == "" {
			continue
		}
		if _, err := stmt.Exec(r.name, r.digest, string(r.json), now); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteIndex) loop() {
	ctx := context.Background()

	insertOutcome, _ := s.db.Prepare(`INSERT OR REPLACE INTO task_outcomes(task_id,agent_id,target,state,code,reason,mined,desired,start_tick,end_tick) VALUES(?,?,?,?,?,?,?,?,?,?)`)
	insertEvent, _ := s.db.Prepare(`INSERT OR REPLACE INTO task_events(tick,seq,agent_id,task_id,type,raw_json) VALUES(?,?,?,?,?,?)`)
	insertAudit, _ := s.db.Prepare(`INSERT OR REPLACE INTO item_audits(tick,seq,action,x,y,z,entity_id,item,count) VALUES(?,?,?,?,?,?,?,?,?)`)
	defer func() {
		for _, st := range []*sql.Stmt{insertOutcome, insertEvent, insertAudit} {
			if st != nil {
				_ = st.Close()
			}
		}
	}()

	var (
		tx            *sql.Tx
		opCount       int
		lastCommit    = time.Now()
		commitEvery   = 1000
		commitMaxWait = 2 * time.Second

		// seq is per table and restarts each tick
		eventTick, auditTick uint64
		eventSeq, auditSeq   int
	)

	begin := func() {
		if tx != nil {
			return
		}
		txx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			time.Sleep(50 * time.Millisecond)
			return
		}
		tx = txx
		opCount = 0
		lastCommit = time.Now()
	}
	commit := func() {
		if tx == nil {
			return
		}
		_ = tx.Commit()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	rollback := func() {
		if tx == nil {
			return
		}
		_ = tx.Rollback()
		tx = nil
		opCount = 0
		lastCommit = time.Now()
	}
	exec := func(st *sql.Stmt, args ...any) {
		if st == nil {
			return
		}
		if _, err := tx.Stmt(st).Exec(args...); err != nil {
			rollback()
			return
		}
		opCount++
	}

	for r := range s.ch {
		begin()
		if tx == nil {
			continue
		}
		switch r.kind {
		case reqOutcome:
			o := r.outcome
			exec(insertOutcome, o.TaskID, o.AgentID, o.Target, o.State, o.Code, o.Reason,
				o.Mined, o.Desired, int64(o.StartTick), int64(o.EndTick))
		case reqEvent:
			e := r.event
			if e.Tick != eventTick {
				eventTick, eventSeq = e.Tick, 0
			}
			seq := eventSeq
			eventSeq++
			exec(insertEvent, int64(e.Tick), seq, e.AgentID, e.TaskID, e.Type, e.Raw)
		case reqAudit:
			a := r.audit
			if a.Tick != auditTick {
				auditTick, auditSeq = a.Tick, 0
			}
			seq := auditSeq
			auditSeq++
			exec(insertAudit, int64(a.Tick), seq, a.Action, a.Pos[0], a.Pos[1], a.Pos[2],
				a.EntityID, a.Item, a.Count)
		}
		if tx != nil && (opCount >= commitEvery || time.Since(lastCommit) >= commitMaxWait) {
			commit()
		}
	}

	commit()
}
