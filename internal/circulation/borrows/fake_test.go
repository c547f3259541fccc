package borrows

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// memRepo は Repository のインメモリ実装。
// Tx は1本ずつ直列に実行し、エラー時はスナップショットへ巻き戻す。
type memRepo struct {
	mu       sync.Mutex
	books    map[string]BookStock
	borrows  map[string]Borrow
	students map[string]string
	titles   map[string]string

	// failOn に一致する Tx 操作でエラーを返す（ロールバック検証用）
	failOn  string
	failErr error
}

func newMemRepo() *memRepo {
	return &memRepo{
		books:    map[string]BookStock{},
		borrows:  map[string]Borrow{},
		students: map[string]string{},
		titles:   map[string]string{},
	}
}

func (r *memRepo) addBook(id, libraryID string, total, available int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.books[id] = BookStock{ID: id, LibraryID: libraryID, Total: total, Available: available}
	r.titles[id] = "title of " + id
}

func (r *memRepo) addStudent(id, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.students[id] = name
}

func (r *memRepo) book(id string) BookStock {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.books[id]
}

func (r *memRepo) openCount(studentID, bookID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, b := range r.borrows {
		if b.StudentID == studentID && b.BookID == bookID && b.Open() {
			n++
		}
	}
	return n
}

func (r *memRepo) WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	books := make(map[string]BookStock, len(r.books))
	for k, v := range r.books {
		books[k] = v
	}
	borrows := make(map[string]Borrow, len(r.borrows))
	for k, v := range r.borrows {
		borrows[k] = v
	}

	if err := fn(ctx, &memTx{r: r}); err != nil {
		r.books, r.borrows = books, borrows
		return err
	}
	return nil
}

func (r *memRepo) List(_ context.Context, f Filter, p Page) ([]BorrowView, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var all []BorrowView
	for _, b := range r.borrows {
		v := r.view(b)
		if f.StudentID != "" && b.StudentID != f.StudentID {
			continue
		}
		if f.LibraryID != "" && v.BookLibraryID != f.LibraryID {
			continue
		}
		if f.OnlyOpen && !b.Open() {
			continue
		}
		all = append(all, v)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].BorrowedAt.Equal(all[j].BorrowedAt) {
			return all[i].BorrowedAt.After(all[j].BorrowedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := int64(len(all))
	if p.Offset >= len(all) {
		return nil, total, nil
	}
	end := p.Offset + p.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[p.Offset:end], total, nil
}

func (r *memRepo) view(b Borrow) BorrowView {
	bk := r.books[b.BookID]
	return BorrowView{
		Borrow:        b,
		StudentName:   r.students[b.StudentID],
		BookTitle:     r.titles[b.BookID],
		BookAuthor:    "author",
		BookLibraryID: bk.LibraryID,
	}
}

// memTx は呼び出し中 memRepo.mu を保持している前提で動く。
type memTx struct{ r *memRepo }

func (t *memTx) fail(op string) error {
	if t.r.failOn == op {
		return t.r.failErr
	}
	return nil
}

func (t *memTx) LockBook(_ context.Context, bookID string) (BookStock, error) {
	if err := t.fail("LockBook"); err != nil {
		return BookStock{}, err
	}
	b, ok := t.r.books[bookID]
	if !ok {
		return BookStock{}, ErrNotFound("book not found")
	}
	return b, nil
}

func (t *memTx) HasOpenBorrow(_ context.Context, studentID, bookID string) (bool, error) {
	for _, b := range t.r.borrows {
		if b.StudentID == studentID && b.BookID == bookID && b.Open() {
			return true, nil
		}
	}
	return false, nil
}

func (t *memTx) InsertBorrow(_ context.Context, b Borrow) error {
	if err := t.fail("InsertBorrow"); err != nil {
		return err
	}
	for _, x := range t.r.borrows {
		if x.StudentID == b.StudentID && x.BookID == b.BookID && x.Open() {
			return ErrConflict("book already borrowed and not yet returned")
		}
	}
	if _, ok := t.r.borrows[b.ID]; ok {
		return fmt.Errorf("duplicate primary key %s", b.ID)
	}
	t.r.borrows[b.ID] = b
	return nil
}

func (t *memTx) FindBorrow(_ context.Context, borrowID string) (Borrow, error) {
	b, ok := t.r.borrows[borrowID]
	if !ok {
		return Borrow{}, ErrNotFound("borrow record not found")
	}
	return b, nil
}

func (t *memTx) LockBorrow(ctx context.Context, borrowID string) (Borrow, error) {
	return t.FindBorrow(ctx, borrowID)
}

func (t *memTx) MarkReturned(_ context.Context, borrowID string, at time.Time) error {
	b, ok := t.r.borrows[borrowID]
	if !ok || !b.Open() {
		return ErrConflict("book has already been returned")
	}
	b.ReturnedAt = &at
	t.r.borrows[borrowID] = b
	return nil
}

func (t *memTx) AdjustAvailable(_ context.Context, bookID string, delta int) error {
	if err := t.fail("AdjustAvailable"); err != nil {
		return err
	}
	b, ok := t.r.books[bookID]
	if !ok {
		return fmt.Errorf("book %s missing", bookID)
	}
	next := b.Available + delta
	if next < 0 || next > b.Total {
		return fmt.Errorf("available_copies out of range: book=%s delta=%d", bookID, delta)
	}
	b.Available = next
	t.r.books[bookID] = b
	return nil
}

func (t *memTx) GetView(_ context.Context, borrowID string) (BorrowView, error) {
	b, ok := t.r.borrows[borrowID]
	if !ok {
		return BorrowView{}, ErrNotFound("borrow record not found")
	}
	return t.r.view(b), nil
}

// fixedClock は呼ぶたびに1秒進む時計
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

func (c *fixedClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type seqID struct {
	mu sync.Mutex
	n  int
}

func (g *seqID) NewULID(time.Time) string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.n++
	return fmt.Sprintf("BR%04d", g.n)
}
