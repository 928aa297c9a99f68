package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/library"
	"github.com/trezcool/shule/storage/database"
)

const bookColumns = "id, title, author, isbn, category, quantity, barcode, shelf_location"

type libraryRepository struct {
	baseRepository
}

var _ library.Repository = (*libraryRepository)(nil) // interface compliance check

func NewLibraryRepository(exec core.DBExecutor) *libraryRepository {
	return &libraryRepository{baseRepository{exec: exec}}
}

// checkBookUniqueness reports which of the barcode or isbn of b another book already has.
func (repo libraryRepository) checkBookUniqueness(ctx context.Context, e core.DBExecutor, b library.Book) error {
	var found []library.Book
	q := "SELECT " + bookColumns + " FROM books WHERE (barcode = ? OR isbn = ?) AND id <> ? LIMIT 1"
	if err := selectAll(ctx, e, &found, q, b.Barcode, b.ISBN, b.ID); err != nil {
		return errors.Wrap(err, "checking book uniqueness")
	}
	if len(found) == 0 {
		return nil
	}
	if found[0].Barcode == b.Barcode {
		return library.ErrBarcodeExists
	}
	return library.ErrISBNExists
}

func (repo libraryRepository) CreateBook(ctx context.Context, b library.Book, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if err := repo.checkBookUniqueness(ctx, e, b); err != nil {
		return err
	}
	_, err := execute(ctx, e, "INSERT INTO books ("+bookColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		b.ID, b.Title, b.Author, b.ISBN, b.Category, b.Quantity, b.Barcode, b.ShelfLocation,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return library.ErrBarcodeExists
		}
		return errors.Wrap(err, "inserting book")
	}
	return nil
}

func (repo libraryRepository) UpdateBook(ctx context.Context, b library.Book, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	if err := repo.checkBookUniqueness(ctx, e, b); err != nil {
		return err
	}
	res, err := execute(ctx, e, `
		UPDATE books SET title = ?, author = ?, isbn = ?, category = ?, quantity = ?, barcode = ?, shelf_location = ?
		WHERE id = ?`,
		b.Title, b.Author, b.ISBN, b.Category, b.Quantity, b.Barcode, b.ShelfLocation, b.ID,
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return library.ErrBarcodeExists
		}
		return errors.Wrap(err, "updating book")
	}
	return mustAffect(res, library.ErrBookNotFound)
}

func (repo libraryRepository) DeleteBook(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "DELETE FROM books WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "deleting book")
	}
	return mustAffect(res, library.ErrBookNotFound)
}

func (repo libraryRepository) GetBook(ctx context.Context, id string, exec ...core.DBExecutor) (library.Book, error) {
	var b library.Book
	if err := get(ctx, repo.getExec(exec), &b, "SELECT "+bookColumns+" FROM books WHERE id = ?", id); err != nil {
		return library.Book{}, trapNoRows(err, library.ErrBookNotFound, "getting book")
	}
	return b, nil
}

func (repo libraryRepository) GetBookByBarcode(ctx context.Context, barcode string, exec ...core.DBExecutor) (library.Book, error) {
	var b library.Book
	if err := get(ctx, repo.getExec(exec), &b, "SELECT "+bookColumns+" FROM books WHERE barcode = ?", barcode); err != nil {
		return library.Book{}, trapNoRows(err, library.ErrBookNotFound, "getting book by barcode")
	}
	return b, nil
}

func (repo libraryRepository) QueryBooks(ctx context.Context, filter library.BookFilter, exec ...core.DBExecutor) ([]library.Book, error) {
	var (
		w    where
		args []interface{}
	)
	if filter.Search != "" {
		val := likeArg(filter.Search)
		w = append(w, "(lower(title) LIKE ? OR lower(author) LIKE ? OR lower(isbn) LIKE ? OR lower(barcode) LIKE ?)")
		args = append(args, val, val, val, val)
	}

	books := make([]library.Book, 0)
	if err := selectAll(ctx, repo.getExec(exec), &books, "SELECT "+bookColumns+" FROM books"+w.String()+" ORDER BY title", args...); err != nil {
		return nil, errors.Wrap(err, "querying books")
	}
	return books, nil
}

func (repo libraryRepository) TakeCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) (bool, error) {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE books SET quantity = quantity - 1 WHERE id = ? AND quantity > 0", bookID)
	if err != nil {
		return false, errors.Wrap(err, "taking book copy")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "taking book copy")
	}
	return n > 0, nil
}

func (repo libraryRepository) PutBackCopy(ctx context.Context, bookID string, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE books SET quantity = quantity + 1 WHERE id = ?", bookID)
	if err != nil {
		return errors.Wrap(err, "putting back book copy")
	}
	return mustAffect(res, library.ErrBookNotFound)
}

// Borrow records

const recordSelect = `
	SELECT r.id, r.student_id, r.book_id, r.borrow_date, r.due_date, r.return_date, r.fine,
		CASE WHEN u.name <> '' THEN u.name ELSE COALESCE(u.username, '') END AS student_name,
		COALESCE(u.email, '') AS student_email,
		b.title AS book_title
	FROM borrow_records r
	JOIN users u ON u.id = r.student_id
	JOIN books b ON b.id = r.book_id`

func (repo libraryRepository) CreateRecord(ctx context.Context, r library.BorrowRecord, exec ...core.DBExecutor) error {
	_, err := execute(ctx, repo.getExec(exec), `
		INSERT INTO borrow_records (id, student_id, book_id, borrow_date, due_date, return_date, fine)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StudentID, r.BookID, utc(r.BorrowDate), utc(r.DueDate), r.ReturnDate, r.Fine,
	)
	if err != nil {
		return trapIntegrity(err, "inserting borrow record")
	}
	return nil
}

func (repo libraryRepository) GetOpenRecord(ctx context.Context, id string, exec ...core.DBExecutor) (library.BorrowRecord, error) {
	var r library.BorrowRecord
	if err := get(ctx, repo.getExec(exec), &r, recordSelect+" WHERE r.id = ? AND r.return_date IS NULL", id); err != nil {
		return library.BorrowRecord{}, trapNoRows(err, library.ErrRecordNotFound, "getting borrow record")
	}
	return r, nil
}

func (repo libraryRepository) UpdateRecord(ctx context.Context, r library.BorrowRecord, exec ...core.DBExecutor) error {
	res, err := execute(ctx, repo.getExec(exec), "UPDATE borrow_records SET due_date = ?, return_date = ?, fine = ? WHERE id = ?",
		utc(r.DueDate), r.ReturnDate, r.Fine, r.ID,
	)
	if err != nil {
		return errors.Wrap(err, "updating borrow record")
	}
	return mustAffect(res, library.ErrRecordNotFound)
}

func (repo libraryRepository) QueryRecords(ctx context.Context, studentID string, open bool, exec ...core.DBExecutor) ([]library.BorrowRecord, error) {
	var (
		w    where
		args []interface{}
	)
	if studentID != "" {
		w = append(w, "r.student_id = ?")
		args = append(args, studentID)
	}
	if open {
		w = append(w, "r.return_date IS NULL")
	}

	records := make([]library.BorrowRecord, 0)
	if err := selectAll(ctx, repo.getExec(exec), &records, recordSelect+w.String()+" ORDER BY r.borrow_date DESC", args...); err != nil {
		return nil, errors.Wrap(err, "querying borrow records")
	}
	return records, nil
}

func (repo libraryRepository) CountBooks(ctx context.Context, exec ...core.DBExecutor) (int, error) {
	var n int
	if err := get(ctx, repo.getExec(exec), &n, "SELECT COUNT(*) FROM books"); err != nil {
		return 0, errors.Wrap(err, "counting books")
	}
	return n, nil
}

func (repo libraryRepository) StudentExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error) {
	return studentExists(ctx, repo.getExec(exec), studentID)
}
