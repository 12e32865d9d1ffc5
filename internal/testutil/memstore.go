// Package testutil — хранилище в памяти для тестов сервисов.
// Повторяет ограничения схемы Postgres (уникальные ключи, внешние ключи
// на каталог), чтобы сервисы видели те же ошибки common.Err*, что и в проде.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"serotonyl.ru/storefront-bot/internal/common"
	"serotonyl.ru/storefront-bot/internal/features/admin"
	"serotonyl.ru/storefront-bot/internal/features/cart"
	"serotonyl.ru/storefront-bot/internal/features/ledger"
	"serotonyl.ru/storefront-bot/internal/features/members"
	"serotonyl.ru/storefront-bot/internal/features/orders"
	"serotonyl.ru/storefront-bot/internal/features/reconcile"
	"serotonyl.ru/storefront-bot/internal/features/referral"
)

type cartKey struct {
	userID int64
	itemID string
}

type attempt struct {
	userID  int64
	at      time.Time
	success bool
}

// MemStore хранит все таблицы бота. Методы безопасны для параллельного вызова.
type MemStore struct {
	mu sync.Mutex

	now func() time.Time

	members  map[int64]*members.Member
	profiles map[int64]*referral.Profile
	edges    []*referral.Edge
	txs      []*ledger.Transaction
	items    map[string]*cart.Item
	lines    map[cartKey]*cart.Line
	orders   map[int64]*orders.Order
	sessions []*admin.Session
	attempts []attempt

	seq int64

	failures map[string]failure
}

type failure struct {
	err  error
	once bool
}

// NewMemStore создаёт пустое хранилище.
func NewMemStore() *MemStore {
	return &MemStore{
		now:      time.Now,
		members:  make(map[int64]*members.Member),
		profiles: make(map[int64]*referral.Profile),
		items:    make(map[string]*cart.Item),
		lines:    make(map[cartKey]*cart.Line),
		orders:   make(map[int64]*orders.Order),
		failures: make(map[string]failure),
	}
}

// SetClock подменяет часы хранилища.
func (m *MemStore) SetClock(now func() time.Time) {
	m.mu.Lock()
	m.now = now
	m.mu.Unlock()
}

// Fail заставляет операцию op (имя метода) возвращать err до вызова Heal.
func (m *MemStore) Fail(op string, err error) {
	m.mu.Lock()
	m.failures[op] = failure{err: err}
	m.mu.Unlock()
}

// FailOnce — как Fail, но только для следующего вызова.
func (m *MemStore) FailOnce(op string, err error) {
	m.mu.Lock()
	m.failures[op] = failure{err: err, once: true}
	m.mu.Unlock()
}

// Heal снимает все подменённые ошибки.
func (m *MemStore) Heal() {
	m.mu.Lock()
	m.failures = make(map[string]failure)
	m.mu.Unlock()
}

// Transient — ошибка вида «база недоступна».
func Transient(op string) error {
	return fmt.Errorf("%w: %s: connection refused", common.ErrTransient, op)
}

// failLocked вызывается под m.mu.
func (m *MemStore) failLocked(op string) error {
	f, ok := m.failures[op]
	if !ok {
		return nil
	}
	if f.once {
		delete(m.failures, op)
	}
	return f.err
}

func (m *MemStore) nextID() int64 {
	m.seq++
	return m.seq
}

func notFound(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrNotFound}, args...)...)
}

func conflict(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{common.ErrConflict}, args...)...)
}

// ===== members =====

// Members возвращает представление members.Store.
func (m *MemStore) Members() *MembersView { return &MembersView{m} }

// MembersView реализует members.Store.
type MembersView struct{ m *MemStore }

func (v *MembersView) Upsert(ctx context.Context, id members.Identity) (*members.Member, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Upsert"); err != nil {
		return nil, err
	}
	now := m.now()
	mem, ok := m.members[id.UserID]
	if !ok {
		mem = &members.Member{ID: m.nextID(), UserID: id.UserID, JoinedAt: now, CreatedAt: now}
		m.members[id.UserID] = mem
	}
	mem.Username, mem.FirstName, mem.LastName = id.Username, id.FirstName, id.LastName
	mem.UpdatedAt = now
	cp := *mem
	return &cp, nil
}

func (v *MembersView) GetByUserID(ctx context.Context, userID int64) (*members.Member, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetByUserID"); err != nil {
		return nil, err
	}
	mem, ok := m.members[userID]
	if !ok {
		return nil, notFound("пользователь %d", userID)
	}
	cp := *mem
	return &cp, nil
}

func (v *MembersView) SetBanned(ctx context.Context, userID int64, banned bool) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("SetBanned"); err != nil {
		return err
	}
	mem, ok := m.members[userID]
	if !ok {
		return notFound("пользователь %d", userID)
	}
	mem.IsBanned = banned
	return nil
}

// ===== referral =====

// Referral возвращает представление referral.Store.
func (m *MemStore) Referral() *ReferralView { return &ReferralView{m} }

// ReferralView реализует referral.Store.
type ReferralView struct{ m *MemStore }

func (v *ReferralView) CodeExists(ctx context.Context, code string) (bool, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CodeExists"); err != nil {
		return false, err
	}
	for _, p := range m.profiles {
		if p.ReferralCode == code {
			return true, nil
		}
	}
	return false, nil
}

func (v *ReferralView) CreateProfile(ctx context.Context, p *referral.Profile) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CreateProfile"); err != nil {
		return err
	}
	for _, existing := range m.profiles {
		if existing.UserID == p.UserID {
			return conflict("профиль пользователя %d уже есть", p.UserID)
		}
		if existing.ReferralCode == p.ReferralCode {
			return conflict("код %s занят", p.ReferralCode)
		}
	}
	now := m.now()
	p.ID = m.nextID()
	p.Balance, p.Bonus = decimal.Zero, decimal.Zero
	p.CreatedAt, p.UpdatedAt = now, now
	cp := *p
	m.profiles[p.ID] = &cp
	return nil
}

func (v *ReferralView) GetProfile(ctx context.Context, profileID int64) (*referral.Profile, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetProfile"); err != nil {
		return nil, err
	}
	p, ok := m.profiles[profileID]
	if !ok {
		return nil, notFound("профиль %d", profileID)
	}
	cp := *p
	return &cp, nil
}

func (v *ReferralView) GetProfileByUserID(ctx context.Context, userID int64) (*referral.Profile, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetProfileByUserID"); err != nil {
		return nil, err
	}
	if p := m.profileByUserLocked(userID); p != nil {
		cp := *p
		return &cp, nil
	}
	return nil, notFound("профиль пользователя %d", userID)
}

func (v *ReferralView) GetProfileByCode(ctx context.Context, code string) (*referral.Profile, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetProfileByCode"); err != nil {
		return nil, err
	}
	for _, p := range m.profiles {
		if p.ReferralCode == code {
			cp := *p
			return &cp, nil
		}
	}
	return nil, notFound("код %s", code)
}

func (v *ReferralView) SetProgram(ctx context.Context, profileID int64, program referral.Program) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("SetProgram"); err != nil {
		return err
	}
	p, ok := m.profiles[profileID]
	if !ok {
		return notFound("профиль %d", profileID)
	}
	p.Program = program
	p.UpdatedAt = m.now()
	return nil
}

func (v *ReferralView) CreateEdge(ctx context.Context, e *referral.Edge) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CreateEdge"); err != nil {
		return err
	}
	if _, ok := m.profiles[e.OwnerProfileID]; !ok {
		return notFound("профиль %d", e.OwnerProfileID)
	}
	if e.ReferredUserID != nil {
		for _, x := range m.edges {
			if x.ReferredUserID == nil || *x.ReferredUserID != *e.ReferredUserID {
				continue
			}
			if x.OwnerProfileID == e.OwnerProfileID {
				return conflict("связь %d → %d уже есть", e.OwnerProfileID, *e.ReferredUserID)
			}
			if x.Level == 1 && e.Level == 1 {
				return conflict("у пользователя %d уже есть пригласивший", *e.ReferredUserID)
			}
		}
	}
	m.insertEdgeLocked(e)
	return nil
}

func (v *ReferralView) FindEdge(ctx context.Context, ownerProfileID, referredUserID int64) (*referral.Edge, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("FindEdge"); err != nil {
		return nil, err
	}
	for _, e := range m.edges {
		if e.OwnerProfileID == ownerProfileID && e.ReferredUserID != nil && *e.ReferredUserID == referredUserID {
			return copyEdge(e), nil
		}
	}
	return nil, notFound("связь %d → %d", ownerProfileID, referredUserID)
}

func (v *ReferralView) InboundEdges(ctx context.Context, referredUserID int64) ([]*referral.Edge, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("InboundEdges"); err != nil {
		return nil, err
	}
	var out []*referral.Edge
	for _, e := range m.edges {
		if e.ReferredUserID != nil && *e.ReferredUserID == referredUserID {
			out = append(out, copyEdge(e))
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Level != out[j].Level {
			return out[i].Level < out[j].Level
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (v *ReferralView) CountEdges(ctx context.Context, ownerProfileID int64, level int) (int64, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CountEdges"); err != nil {
		return 0, err
	}
	var n int64
	for _, e := range m.edges {
		if e.OwnerProfileID == ownerProfileID && (level == 0 || e.Level == level) {
			n++
		}
	}
	return n, nil
}

func (m *MemStore) profileByUserLocked(userID int64) *referral.Profile {
	for _, p := range m.profiles {
		if p.UserID == userID {
			return p
		}
	}
	return nil
}

func (m *MemStore) insertEdgeLocked(e *referral.Edge) {
	e.ID = m.nextID()
	e.CreatedAt = m.now()
	m.edges = append(m.edges, copyEdge(e))
}

func copyEdge(e *referral.Edge) *referral.Edge {
	cp := *e
	if e.ReferredUserID != nil {
		id := *e.ReferredUserID
		cp.ReferredUserID = &id
	}
	if e.Contact != nil {
		c := *e.Contact
		cp.Contact = &c
	}
	return &cp
}

// InjectEdge добавляет связь в обход ограничений уникальности
// (так выглядят данные, записанные до появления ограничений).
func (m *MemStore) InjectEdge(ownerProfileID int64, level int, referredUserID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.insertEdgeLocked(&referral.Edge{OwnerProfileID: ownerProfileID, Level: level, ReferredUserID: &referredUserID})
}

// Edges возвращает копию всех связей в порядке вставки.
func (m *MemStore) Edges() []*referral.Edge {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*referral.Edge, 0, len(m.edges))
	for _, e := range m.edges {
		out = append(out, copyEdge(e))
	}
	return out
}

// SetStoredBalance портит сохранённый баланс профиля (для тестов сверки).
func (m *MemStore) SetStoredBalance(profileID int64, bonus, balance decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[profileID]; ok {
		p.Bonus, p.Balance = bonus, balance
	}
}

// ===== ledger =====

// Ledger возвращает представление ledger.Store.
func (m *MemStore) Ledger() *LedgerView { return &LedgerView{m} }

// LedgerView реализует ledger.Store.
type LedgerView struct{ m *MemStore }

func (v *LedgerView) Append(ctx context.Context, tx *ledger.Transaction) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Append"); err != nil {
		return err
	}
	if _, ok := m.profiles[tx.ProfileID]; !ok {
		return notFound("профиль %d", tx.ProfileID)
	}
	// CHECK (amount > 0)
	if !tx.Amount.IsPositive() {
		return fmt.Errorf("%w: сумма %s", common.ErrValidation, tx.Amount)
	}
	if tx.Ref != nil {
		for _, x := range m.txs {
			if x.ProfileID == tx.ProfileID && x.Ref != nil && *x.Ref == *tx.Ref {
				return conflict("операция %s уже записана", *tx.Ref)
			}
		}
	}
	m.insertTxLocked(tx)
	return nil
}

func (v *LedgerView) ListRecent(ctx context.Context, profileID int64, limit int) ([]*ledger.Transaction, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("ListRecent"); err != nil {
		return nil, err
	}
	out := m.txsOfLocked(profileID)
	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	if limit >= 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ProjectBalance сворачивает журнал и пишет итог под общим мьютексом,
// как транзакция с блокировкой строки профиля в PostgreSQL.
func (v *LedgerView) ProjectBalance(ctx context.Context, profileID int64, fold func([]*ledger.Transaction) decimal.Decimal) (decimal.Decimal, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("ProjectBalance"); err != nil {
		return decimal.Zero, err
	}
	p, ok := m.profiles[profileID]
	if !ok {
		return decimal.Zero, notFound("профиль %d", profileID)
	}
	total := fold(m.txsOfLocked(profileID))
	p.Bonus, p.Balance = total, total
	p.UpdatedAt = m.now()
	return total, nil
}

func (m *MemStore) insertTxLocked(tx *ledger.Transaction) {
	tx.ID = m.nextID()
	tx.CreatedAt = m.now()
	m.txs = append(m.txs, copyTx(tx))
}

func (m *MemStore) txsOfLocked(profileID int64) []*ledger.Transaction {
	var out []*ledger.Transaction
	for _, t := range m.txs {
		if t.ProfileID == profileID {
			out = append(out, copyTx(t))
		}
	}
	return out
}

func copyTx(t *ledger.Transaction) *ledger.Transaction {
	cp := *t
	if t.Ref != nil {
		r := *t.Ref
		cp.Ref = &r
	}
	return &cp
}

// InjectTransaction дописывает операцию в обход уникальности ref.
func (m *MemStore) InjectTransaction(profileID int64, txType ledger.TxType, amount decimal.Decimal, description, ref string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx := &ledger.Transaction{ProfileID: profileID, Type: txType, Amount: amount, Description: description}
	if ref != "" {
		tx.Ref = &ref
	}
	m.insertTxLocked(tx)
}

// Transactions возвращает копию журнала профиля в порядке записи.
func (m *MemStore) Transactions(profileID int64) []*ledger.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.txsOfLocked(profileID)
}

// ===== cart =====

// Cart возвращает представление cart.Store.
func (m *MemStore) Cart() *CartView { return &CartView{m} }

// CartView реализует cart.Store.
type CartView struct{ m *MemStore }

// SeedItem добавляет товар в каталог.
func (m *MemStore) SeedItem(id, title string, price decimal.Decimal, active bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[id] = &cart.Item{ID: id, Title: title, Price: price, IsActive: active}
}

func (v *CartView) GetItem(ctx context.Context, itemID string) (*cart.Item, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetItem"); err != nil {
		return nil, err
	}
	it, ok := m.items[itemID]
	if !ok || !it.IsActive {
		return nil, notFound("товар %s", itemID)
	}
	cp := *it
	return &cp, nil
}

func (v *CartView) ListItems(ctx context.Context) ([]*cart.Item, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("ListItems"); err != nil {
		return nil, err
	}
	var out []*cart.Item
	for _, it := range m.items {
		if it.IsActive {
			cp := *it
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v *CartView) Add(ctx context.Context, userID int64, itemID string) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Add"); err != nil {
		return 0, err
	}
	it, ok := m.items[itemID]
	if !ok || !it.IsActive {
		return 0, notFound("товар %s", itemID)
	}
	now := m.now()
	key := cartKey{userID, itemID}
	l, ok := m.lines[key]
	if !ok {
		l = &cart.Line{UserID: userID, Item: *it, AddedAt: now}
		m.lines[key] = l
	}
	l.Quantity++
	l.UpdatedAt = now
	return l.Quantity, nil
}

func (v *CartView) Increase(ctx context.Context, userID int64, itemID string) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Increase"); err != nil {
		return 0, err
	}
	l, ok := m.lines[cartKey{userID, itemID}]
	if !ok {
		return 0, notFound("строка корзины %s", itemID)
	}
	l.Quantity++
	l.UpdatedAt = m.now()
	return l.Quantity, nil
}

func (v *CartView) Decrease(ctx context.Context, userID int64, itemID string) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Decrease"); err != nil {
		return 0, err
	}
	key := cartKey{userID, itemID}
	l, ok := m.lines[key]
	if !ok {
		return 0, nil
	}
	if l.Quantity <= 1 {
		delete(m.lines, key)
		return 0, nil
	}
	l.Quantity--
	l.UpdatedAt = m.now()
	return l.Quantity, nil
}

func (v *CartView) Remove(ctx context.Context, userID int64, itemID string) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Remove"); err != nil {
		return err
	}
	delete(m.lines, cartKey{userID, itemID})
	return nil
}

func (v *CartView) Clear(ctx context.Context, userID int64) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Clear"); err != nil {
		return err
	}
	m.clearCartLocked(userID)
	return nil
}

func (v *CartView) List(ctx context.Context, userID int64) ([]*cart.Line, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("List"); err != nil {
		return nil, err
	}
	return m.cartLocked(userID), nil
}

func (m *MemStore) cartLocked(userID int64) []*cart.Line {
	var out []*cart.Line
	for key, l := range m.lines {
		if key.userID != userID {
			continue
		}
		cp := *l
		if it, ok := m.items[key.itemID]; ok {
			cp.Item = *it
		}
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].AddedAt.Equal(out[j].AddedAt) {
			return out[i].AddedAt.Before(out[j].AddedAt)
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out
}

func (m *MemStore) clearCartLocked(userID int64) {
	for key := range m.lines {
		if key.userID == userID {
			delete(m.lines, key)
		}
	}
}

// ===== orders =====

// Orders возвращает представление orders.Store.
func (m *MemStore) Orders() *OrdersView { return &OrdersView{m} }

// OrdersView реализует orders.Store.
type OrdersView struct{ m *MemStore }

func (v *OrdersView) CreateFromCart(ctx context.Context, userID int64) (*orders.Order, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CreateFromCart"); err != nil {
		return nil, err
	}
	lines := m.cartLocked(userID)
	if len(lines) == 0 {
		return nil, common.ErrEmptyCart
	}
	items := make([]orders.Item, 0, len(lines))
	for _, l := range lines {
		items = append(items, orders.Item{ItemID: l.Item.ID, Title: l.Item.Title, Price: l.Item.Price, Quantity: l.Quantity})
	}
	o := &orders.Order{
		ID:        m.nextID(),
		UserID:    userID,
		Status:    orders.StatusPending,
		Total:     orders.TotalOf(items),
		Items:     items,
		CreatedAt: m.now(),
	}
	m.orders[o.ID] = o
	m.clearCartLocked(userID)
	return copyOrder(o), nil
}

func (v *OrdersView) Get(ctx context.Context, orderID int64) (*orders.Order, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Get"); err != nil {
		return nil, err
	}
	o, ok := m.orders[orderID]
	if !ok {
		return nil, notFound("заказ %d", orderID)
	}
	return copyOrder(o), nil
}

func (v *OrdersView) Transition(ctx context.Context, orderID int64, from, to orders.Status) (bool, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Transition"); err != nil {
		return false, err
	}
	o, ok := m.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	if to == orders.StatusCompleted {
		now := m.now()
		o.CompletedAt = &now
	}
	return true, nil
}

func copyOrder(o *orders.Order) *orders.Order {
	cp := *o
	cp.Items = append([]orders.Item(nil), o.Items...)
	if o.CompletedAt != nil {
		t := *o.CompletedAt
		cp.CompletedAt = &t
	}
	return &cp
}

// ===== reconcile =====

// Reconcile возвращает представление reconcile.Store.
func (m *MemStore) Reconcile() *ReconcileView { return &ReconcileView{m} }

// ReconcileView реализует reconcile.Store.
type ReconcileView struct{ m *MemStore }

func (v *ReconcileView) DeleteDuplicateEdges(ctx context.Context) ([]int64, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("DeleteDuplicateEdges"); err != nil {
		return nil, err
	}
	type key struct{ owner, user int64 }
	seen := make(map[key]bool)
	var owners []int64
	kept := m.edges[:0]
	for _, e := range m.edges {
		if e.ReferredUserID == nil {
			kept = append(kept, e)
			continue
		}
		k := key{e.OwnerProfileID, *e.ReferredUserID}
		if seen[k] {
			owners = append(owners, e.OwnerProfileID)
			continue
		}
		seen[k] = true
		kept = append(kept, e)
	}
	m.edges = kept
	return owners, nil
}

func (v *ReconcileView) DeleteDuplicateTransactions(ctx context.Context) ([]int64, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("DeleteDuplicateTransactions"); err != nil {
		return nil, err
	}
	type key struct {
		profile int64
		typ     ledger.TxType
		amount  string
		desc    string
		ref     string
		hasRef  bool
	}
	keyOf := func(t *ledger.Transaction) key {
		k := key{profile: t.ProfileID, typ: t.Type, amount: t.Amount.StringFixed(2), desc: t.Description}
		if t.Ref != nil {
			k.ref, k.hasRef = *t.Ref, true
		}
		return k
	}
	// Как DELETE ... USING: строка — дубль, если есть более ранняя (по id)
	// с теми же полями не дальше секунды от неё.
	isDup := func(t *ledger.Transaction) bool {
		for _, d := range m.txs {
			if d.ID >= t.ID || keyOf(d) != keyOf(t) {
				continue
			}
			delta := t.CreatedAt.Sub(d.CreatedAt)
			if delta < 0 {
				delta = -delta
			}
			if delta < time.Second {
				return true
			}
		}
		return false
	}

	var profiles []int64
	var kept []*ledger.Transaction
	for _, t := range m.txs {
		if isDup(t) {
			profiles = append(profiles, t.ProfileID)
			continue
		}
		kept = append(kept, t)
	}
	m.txs = kept
	return profiles, nil
}

func (v *ReconcileView) Drifts(ctx context.Context) ([]reconcile.Drift, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("Drifts"); err != nil {
		return nil, err
	}
	var out []reconcile.Drift
	for _, p := range m.profiles {
		total := ledger.Fold(m.txsOfLocked(p.ID))
		if !p.Bonus.Equal(total) || !p.Balance.Equal(total) {
			out = append(out, reconcile.Drift{ProfileID: p.ID, UserID: p.UserID, Stored: p.Bonus, Ledger: total})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ProfileID < out[j].ProfileID })
	return out, nil
}

func (v *ReconcileView) ProfileIDs(ctx context.Context) ([]int64, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("ProfileIDs"); err != nil {
		return nil, err
	}
	out := make([]int64, 0, len(m.profiles))
	for id := range m.profiles {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}

func (v *ReconcileView) ProfileIDByUser(ctx context.Context, userID int64) (int64, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("ProfileIDByUser"); err != nil {
		return 0, err
	}
	if p := m.profileByUserLocked(userID); p != nil {
		return p.ID, nil
	}
	return 0, notFound("профиль пользователя %d", userID)
}

// ===== admin =====

// Auth возвращает представление admin.AuthStore.
func (m *MemStore) Auth() *AuthView { return &AuthView{m} }

// AuthView реализует admin.AuthStore.
type AuthView struct{ m *MemStore }

func (v *AuthView) CreateSession(ctx context.Context, session *admin.Session) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CreateSession"); err != nil {
		return err
	}
	now := m.now()
	session.ID = m.nextID()
	session.IsActive = true
	session.AuthenticatedAt, session.LastActivity = now, now
	cp := *session
	m.sessions = append(m.sessions, &cp)
	return nil
}

func (v *AuthView) GetActiveSession(ctx context.Context, userID int64) (*admin.Session, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("GetActiveSession"); err != nil {
		return nil, err
	}
	now := m.now()
	for i := len(m.sessions) - 1; i >= 0; i-- {
		s := m.sessions[i]
		if s.UserID == userID && s.IsActive && s.ExpiresAt.After(now) {
			cp := *s
			return &cp, nil
		}
	}
	return nil, notFound("сессия %d", userID)
}

func (v *AuthView) DeactivateSession(ctx context.Context, userID int64) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("DeactivateSession"); err != nil {
		return err
	}
	for _, s := range m.sessions {
		if s.UserID == userID {
			s.IsActive = false
		}
	}
	return nil
}

func (v *AuthView) UpdateActivity(ctx context.Context, userID int64) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("UpdateActivity"); err != nil {
		return err
	}
	now := m.now()
	for _, s := range m.sessions {
		if s.UserID == userID && s.IsActive {
			s.LastActivity = now
		}
	}
	return nil
}

func (v *AuthView) LogAttempt(ctx context.Context, userID int64, success bool) error {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("LogAttempt"); err != nil {
		return err
	}
	m.attempts = append(m.attempts, attempt{userID: userID, at: m.now(), success: success})
	return nil
}

func (v *AuthView) CountFailedAttempts(ctx context.Context, userID int64, period time.Duration) (int, error) {
	m := v.m
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failLocked("CountFailedAttempts"); err != nil {
		return 0, err
	}
	since := m.now().Add(-period)
	n := 0
	for _, a := range m.attempts {
		if a.userID == userID && !a.success && a.at.After(since) {
			n++
		}
	}
	return n, nil
}

// Compile-time проверки.
var (
	_ members.Store   = (*MembersView)(nil)
	_ referral.Store  = (*ReferralView)(nil)
	_ ledger.Store    = (*LedgerView)(nil)
	_ cart.Store      = (*CartView)(nil)
	_ orders.Store    = (*OrdersView)(nil)
	_ reconcile.Store = (*ReconcileView)(nil)
	_ admin.AuthStore = (*AuthView)(nil)
)
