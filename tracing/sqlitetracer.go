package tracing

import (
	"database/sql"
	"fmt"
	"os"
	"sync"

	// Need to use SQLite connections.
	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"

	"github.com/sarchlab/fetchbuf/sim"
)

// SQLiteTracer is a tracer that stores finished tasks in a SQLite database.
type SQLiteTracer struct {
	timeTeller sim.TimeTeller

	lock      sync.Mutex
	db        *sql.DB
	statement *sql.Stmt

	dbName    string
	inflight  map[string]Task
	batch     []Task
	batchSize int
}

// NewSQLiteTracer creates a new SQLiteTracer. If path is empty, a unique
// database name is generated. The buffered tasks are flushed when the
// program exits.
func NewSQLiteTracer(timeTeller sim.TimeTeller, path string) *SQLiteTracer {
	t := &SQLiteTracer{
		timeTeller: timeTeller,
		dbName:     path,
		inflight:   make(map[string]Task),
		batchSize:  100000,
	}

	atexit.Register(func() { t.Flush() })

	return t
}

// Init establishes a connection to the database and prepares the trace
// table.
func (t *SQLiteTracer) Init() {
	if t.dbName == "" {
		t.dbName = "fetchbuf_trace_" + xid.New().String()
	}

	filename := t.dbName + ".sqlite3"

	_, err := os.Stat(filename)
	if err == nil {
		panic(fmt.Errorf("file %s already exists", filename))
	}

	db, err := sql.Open("sqlite3", filename)
	if err != nil {
		panic(err)
	}

	t.db = db

	t.mustExecute(`
		CREATE TABLE trace (
			task_id TEXT,
			parent_id TEXT,
			kind TEXT,
			what TEXT,
			location TEXT,
			start_time FLOAT,
			end_time FLOAT
		)
	`)

	t.statement, err = t.db.Prepare(`
		INSERT INTO trace (
			task_id, parent_id, kind, what, location, start_time, end_time
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		panic(err)
	}
}

// StartTask records the task start time.
func (t *SQLiteTracer) StartTask(task Task) {
	task.StartTime = t.timeTeller.CurrentTime()

	t.lock.Lock()
	t.inflight[task.ID] = task
	t.lock.Unlock()
}

// StepTask does nothing.
func (t *SQLiteTracer) StepTask(_ Task) {
	// Do nothing
}

// EndTask buffers the finished task for writing.
func (t *SQLiteTracer) EndTask(task Task) {
	t.lock.Lock()

	originalTask, ok := t.inflight[task.ID]
	if !ok {
		t.lock.Unlock()
		return
	}

	originalTask.EndTime = t.timeTeller.CurrentTime()
	delete(t.inflight, task.ID)

	t.batch = append(t.batch, originalTask)
	mustFlush := len(t.batch) >= t.batchSize

	t.lock.Unlock()

	if mustFlush {
		t.Flush()
	}
}

// Flush writes all the buffered tasks to the database.
func (t *SQLiteTracer) Flush() {
	t.lock.Lock()
	defer t.lock.Unlock()

	if len(t.batch) == 0 {
		return
	}

	t.mustExecute("BEGIN TRANSACTION")
	defer t.mustExecute("COMMIT TRANSACTION")

	for _, task := range t.batch {
		_, err := t.statement.Exec(
			task.ID,
			task.ParentID,
			task.Kind,
			task.What,
			task.Where,
			float64(task.StartTime),
			float64(task.EndTime),
		)
		if err != nil {
			panic(err)
		}
	}

	t.batch = t.batch[:0]
}

func (t *SQLiteTracer) mustExecute(query string) sql.Result {
	res, err := t.db.Exec(query)
	if err != nil {
		panic(query + " failed: " + err.Error())
	}
	return res
}
