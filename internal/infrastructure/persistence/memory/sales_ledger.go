// Package memory keeps POS sales and report rows in process memory.
// It backs unit tests and single-process tooling that run without a database.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/possales/backend/internal/domain/report"
	"github.com/shopspring/decimal"
)

// Line is one invoice line
type Line struct {
	ProductID int64
	Qty       int64
	Price     decimal.Decimal
}

type invoice struct {
	id       int64
	userID   int64
	createAt time.Time
	lines    []Line
}

type product struct {
	name       string
	categoryID *int64
}

// SalesLedger is an in-memory report.SalesAggregator
type SalesLedger struct {
	mu         sync.RWMutex
	location   *time.Location
	users      map[int64]string
	categories map[int64]string
	products   map[int64]product
	invoices   []invoice
	nextID     int64
}

// NewSalesLedger creates an empty ledger whose calendar days start in loc
func NewSalesLedger(loc *time.Location) *SalesLedger {
	if loc == nil {
		loc = time.UTC
	}
	return &SalesLedger{
		location:   loc,
		users:      make(map[int64]string),
		categories: make(map[int64]string),
		products:   make(map[int64]product),
	}
}

// AddUser registers a user
func (l *SalesLedger) AddUser(id int64, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.users[id] = name
}

// AddCategory registers a category
func (l *SalesLedger) AddCategory(id int64, name string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.categories[id] = name
}

// AddProduct registers a product; categoryID may be nil
func (l *SalesLedger) AddProduct(id int64, name string, categoryID *int64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.products[id] = product{name: name, categoryID: categoryID}
}

// AddInvoice records an invoice and returns its id
func (l *SalesLedger) AddInvoice(userID int64, createAt time.Time, lines ...Line) int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextID++
	l.invoices = append(l.invoices, invoice{
		id:       l.nextID,
		userID:   userID,
		createAt: createAt,
		lines:    append([]Line(nil), lines...),
	})
	return l.nextID
}

type bucket struct {
	id       *int64
	name     *string
	sales    decimal.Decimal
	qty      int64
	invoices map[int64]struct{}
}

func (b *bucket) add(invoiceID int64, line Line) {
	b.sales = b.sales.Add(line.Price.Mul(decimal.NewFromInt(line.Qty)))
	b.qty += line.Qty
	b.invoices[invoiceID] = struct{}{}
}

func newBucket(id *int64, name *string) *bucket {
	return &bucket{id: id, name: name, sales: decimal.Zero, invoices: make(map[int64]struct{})}
}

// Aggregate implements report.SalesAggregator
func (l *SalesLedger) Aggregate(ctx context.Context, filter report.AggregateFilter) ([]report.AggregateRow, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var from, to time.Time
	if filter.Window != nil {
		from, to = filter.Window.Bounds(l.location)
	}

	buckets := make(map[int64]*bucket)
	for _, inv := range l.invoices {
		if filter.Window != nil && (inv.createAt.Before(from) || !inv.createAt.Before(to)) {
			continue
		}
		for _, line := range inv.lines {
			key, id, name, ok, err := l.group(filter.Dimension, inv, line)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			b, exists := buckets[key]
			if !exists {
				b = newBucket(id, name)
				buckets[key] = b
			}
			b.add(inv.id, line)
		}
	}

	keys := make([]int64, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })

	rows := make([]report.AggregateRow, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		rows = append(rows, report.AggregateRow{
			CriteriaID:    b.id,
			CriteriaName:  b.name,
			TotalSales:    b.sales,
			TotalQty:      b.qty,
			TotalInvoices: int64(len(b.invoices)),
		})
	}
	return rows, nil
}

// group resolves the bucket of a line. ok is false when the line has no group,
// matching the inner joins of the SQL aggregator.
func (l *SalesLedger) group(dim report.CriteriaType, inv invoice, line Line) (key int64, id *int64, name *string, ok bool, err error) {
	switch dim {
	case report.CriteriaNone, "":
		return 0, nil, nil, true, nil
	case report.CriteriaProduct:
		p, found := l.products[line.ProductID]
		if !found {
			return 0, nil, nil, false, nil
		}
		return line.ProductID, int64Ptr(line.ProductID), stringPtr(p.name), true, nil
	case report.CriteriaCategory:
		p, found := l.products[line.ProductID]
		if !found || p.categoryID == nil {
			return 0, nil, nil, false, nil
		}
		cname, found := l.categories[*p.categoryID]
		if !found {
			return 0, nil, nil, false, nil
		}
		return *p.categoryID, int64Ptr(*p.categoryID), stringPtr(cname), true, nil
	case report.CriteriaUser:
		uname, found := l.users[inv.userID]
		if !found {
			return 0, nil, nil, false, nil
		}
		return inv.userID, int64Ptr(inv.userID), stringPtr(uname), true, nil
	default:
		return 0, nil, nil, false, fmt.Errorf("unsupported aggregate dimension %q", dim)
	}
}

// AggregateDays implements report.SalesAggregator
func (l *SalesLedger) AggregateDays(ctx context.Context) ([]report.DayAggregate, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	buckets := make(map[time.Time]*bucket)
	for _, inv := range l.invoices {
		day := report.DateOf(inv.createAt.In(l.location))
		b, ok := buckets[day]
		if !ok {
			b = newBucket(nil, nil)
			buckets[day] = b
		}
		for _, line := range inv.lines {
			b.add(inv.id, line)
		}
	}

	days := make([]report.DayAggregate, 0, len(buckets))
	for day, b := range buckets {
		if len(b.invoices) == 0 {
			continue
		}
		days = append(days, report.DayAggregate{
			Day:           day,
			TotalSales:    b.sales,
			TotalQty:      b.qty,
			TotalInvoices: int64(len(b.invoices)),
		})
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Day.Before(days[j].Day) })
	return days, nil
}

func int64Ptr(v int64) *int64 {
	return &v
}

func stringPtr(v string) *string {
	return &v
}
