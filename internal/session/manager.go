// Package session owns the cart's authoritative representation. It
// decides whether the cart is sourced from the guest store or the
// server, performs the one-time guest-to-server merge on login, and
// is the single place a rejected credential ends the session.
package session

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/auth"
	"github.com/angelmondragon/storefront-client/internal/cart"
	cartclient "github.com/angelmondragon/storefront-client/internal/cart/client"
	"github.com/angelmondragon/storefront-client/internal/cart/guest"
	"github.com/angelmondragon/storefront-client/internal/orders"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
)

// Mode is the visitor's authentication state. It changes only on the
// login, logout, and restore transitions; no other code path derives
// it ad hoc.
type Mode string

const (
	ModeGuest         Mode = "guest"
	ModeAuthenticated Mode = "authenticated"
)

// GuestStore is the browser-local cart backing.
type GuestStore interface {
	Load() []cart.Line
	Save(lines []cart.Line)
	Clear()
	AddOrIncrement(product guest.Product, qty int) []cart.Line
	SetQuantity(lineID cart.ID, qty int) []cart.Line
	RemoveLine(lineID cart.ID) []cart.Line
}

// CartService is the server-backed cart.
type CartService interface {
	FetchSnapshot(ctx context.Context) (*cart.Cart, error)
	AddLine(ctx context.Context, productID cart.ID, qty int) (int, error)
	UpdateQuantity(ctx context.Context, lineID cart.ID, qty int) error
	RemoveLine(ctx context.Context, lineID cart.ID) error
	Clear(ctx context.Context) error
	Merge(ctx context.Context, items []cartclient.MergeItem) error
}

// AuthService issues and persists credentials and serves the full
// account profile.
type AuthService interface {
	Login(ctx context.Context, username, password string) (auth.Profile, error)
	Register(ctx context.Context, username, email, password string) (string, error)
	FetchAccount(ctx context.Context) (auth.Account, error)
	UpdateAccount(ctx context.Context, input auth.UpdateAccountInput) (auth.Account, error)
	SaveProfile(profile auth.Profile)
	LoadProfile() (auth.Profile, bool)
	ClearProfile()
}

// OrderService handles checkout, history, and the staff-only listings.
type OrderService interface {
	SubmitPayment(ctx context.Context, input orders.SubmitPaymentInput) error
	History(ctx context.Context) ([]orders.Order, error)
	AllOrders(ctx context.Context) ([]orders.AdminOrder, error)
	AllPayments(ctx context.Context) ([]orders.AdminPayment, error)
}

// Notifier shows transient advisory messages.
type Notifier interface {
	Show(msg string)
}

// Credentials holds the live bearer token. It doubles as the token
// source for the shared REST client so every authenticated request
// picks up the current credential from one place.
type Credentials struct {
	mu    sync.Mutex
	token string
}

func (c *Credentials) Token() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.token
}

func (c *Credentials) set(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

func (c *Credentials) clear() {
	c.set("")
}

// Manager is the cart session manager. Construct one per process at
// the top level and thread it through; it is not a package-level
// singleton so tests can build fresh instances.
type Manager struct {
	guest  GuestStore
	cart   CartService
	auth   AuthService
	orders OrderService
	creds  *Credentials
	toast  Notifier
	logg   *logger.Logger
	now    func() time.Time

	mu            sync.Mutex
	mode          Mode
	profile       auth.Profile
	mergeInFlight bool
	guestGen      uint64
}

// Deps wires the manager's collaborators.
type Deps struct {
	Guest       GuestStore
	Cart        CartService
	Auth        AuthService
	Orders      OrderService
	Credentials *Credentials
	Toast       Notifier
	Logger      *logger.Logger
	Now         func() time.Time
}

// NewManager builds a session manager starting in guest mode.
func NewManager(deps Deps) (*Manager, error) {
	if deps.Guest == nil {
		return nil, fmt.Errorf("guest store required")
	}
	if deps.Cart == nil {
		return nil, fmt.Errorf("cart service required")
	}
	if deps.Auth == nil {
		return nil, fmt.Errorf("auth service required")
	}
	if deps.Credentials == nil {
		return nil, fmt.Errorf("credentials holder required")
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Manager{
		guest:  deps.Guest,
		cart:   deps.Cart,
		auth:   deps.Auth,
		orders: deps.Orders,
		creds:  deps.Credentials,
		toast:  deps.Toast,
		logg:   deps.Logger,
		now:    now,
		mode:   ModeGuest,
	}, nil
}

// Mode reports the current session mode.
func (m *Manager) Mode() Mode {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mode
}

// Profile returns the authenticated profile summary, if any.
func (m *Manager) Profile() (auth.Profile, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeAuthenticated {
		return auth.Profile{}, false
	}
	return m.profile, true
}

// Restore re-adopts a persisted credential on startup. An expired or
// missing credential leaves the session in guest mode. Restoring
// never runs the merge: a reload right after login must not resubmit
// the already-merged snapshot.
func (m *Manager) Restore(ctx context.Context) {
	profile, ok := m.auth.LoadProfile()
	if !ok {
		return
	}
	if auth.CredentialExpired(profile.Access, m.now()) {
		m.auth.ClearProfile()
		m.info(ctx, "stored credential expired, staying in guest mode")
		return
	}

	m.mu.Lock()
	m.mode = ModeAuthenticated
	m.profile = profile
	m.mu.Unlock()
	m.creds.set(profile.Access)
	m.info(ctx, "session restored")
}

// Login runs the guest-to-authenticated handoff in strict order:
// snapshot the guest cart, authenticate, merge the snapshot under
// the new credential, and clear the guest store only after the merge
// succeeds. A failed merge keeps the guest cart intact and does not
// fail the login.
func (m *Manager) Login(ctx context.Context, username, password string) error {
	// The snapshot is fixed before the authentication request goes
	// out, and suppressed entirely while an earlier merge is still
	// in flight. The generation number pins the snapshot to the
	// guest cart it was taken from: a merge that hands the cart off
	// bumps it, invalidating any snapshot fixed by an overlapping
	// login whose auth response arrives later.
	m.mu.Lock()
	var snapshot []cartclient.MergeItem
	gen := m.guestGen
	if !m.mergeInFlight {
		for _, line := range m.guest.Load() {
			snapshot = append(snapshot, cartclient.MergeItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
			})
		}
	}
	m.mu.Unlock()

	profile, err := m.auth.Login(ctx, username, password)
	if err != nil {
		// Snapshot discarded; the guest cart stays untouched.
		return err
	}

	m.mu.Lock()
	m.mode = ModeAuthenticated
	m.profile = profile
	startMerge := len(snapshot) > 0 && !m.mergeInFlight && gen == m.guestGen
	if startMerge {
		m.mergeInFlight = true
	}
	m.mu.Unlock()

	m.creds.set(profile.Access)
	m.auth.SaveProfile(profile)
	m.info(m.logCtx(ctx, map[string]any{"username": username}), "login succeeded")

	if !startMerge {
		return nil
	}

	mergeErr := m.cart.Merge(ctx, snapshot)

	m.mu.Lock()
	m.mergeInFlight = false
	if mergeErr == nil {
		// The guest cart is handed off; stale snapshots die here.
		m.guestGen++
	}
	m.mu.Unlock()

	if mergeErr != nil {
		// Guest store stays intact so no items are lost; the login
		// itself has already completed.
		m.warnErr(ctx, "guest cart merge failed, keeping local cart", mergeErr)
		m.notify("We couldn't move your cart over; your items are still saved here.")
		return nil
	}

	m.guest.Clear()
	m.info(m.logCtx(ctx, map[string]any{"merged_lines": len(snapshot)}), "guest cart merged")
	return nil
}

// Register creates an account. Registration alone never triggers a
// merge; the visitor still logs in explicitly.
func (m *Manager) Register(ctx context.Context, username, email, password string) (string, error) {
	return m.auth.Register(ctx, username, email, password)
}

// Logout drops the credential and falls back to guest mode.
func (m *Manager) Logout(ctx context.Context) {
	m.mu.Lock()
	m.mode = ModeGuest
	m.profile = auth.Profile{}
	m.mu.Unlock()

	m.creds.clear()
	m.auth.ClearProfile()
	m.info(ctx, "logged out")
}

// AddToCart adds the product to whichever backing is active and
// returns the resulting badge count. In authenticated mode the
// server's count is trusted; a failed mutation leaves the visible
// count unchanged.
func (m *Manager) AddToCart(ctx context.Context, product guest.Product, qty int) (int, error) {
	if qty < 1 {
		qty = 1
	}
	if m.Mode() == ModeGuest {
		lines := m.guest.AddOrIncrement(product, qty)
		return cart.TotalQuantity(lines), nil
	}

	count, err := m.cart.AddLine(ctx, product.ID, qty)
	if err != nil {
		return 0, m.afterRemote(ctx, err)
	}
	return count, nil
}

// SetQuantity updates a line in the active backing. A quantity below
// one removes the line.
func (m *Manager) SetQuantity(ctx context.Context, lineID cart.ID, qty int) error {
	if m.Mode() == ModeGuest {
		m.guest.SetQuantity(lineID, qty)
		return nil
	}
	if qty < 1 {
		return m.RemoveLine(ctx, lineID)
	}
	if err := m.cart.UpdateQuantity(ctx, lineID, qty); err != nil {
		return m.afterRemote(ctx, err)
	}
	return nil
}

// RemoveLine removes a line from the active backing.
func (m *Manager) RemoveLine(ctx context.Context, lineID cart.ID) error {
	if m.Mode() == ModeGuest {
		m.guest.RemoveLine(lineID)
		return nil
	}
	if err := m.cart.RemoveLine(ctx, lineID); err != nil {
		return m.afterRemote(ctx, err)
	}
	return nil
}

// ClearCart empties the active cart. In authenticated mode this
// round-trips a server-side clear so the backings cannot drift.
func (m *Manager) ClearCart(ctx context.Context) error {
	if m.Mode() == ModeGuest {
		m.guest.Clear()
		return nil
	}
	if err := m.cart.Clear(ctx); err != nil {
		return m.afterRemote(ctx, err)
	}
	return nil
}

// CartSnapshot returns the current cart from the active source of
// truth, with the grand total recomputed from its lines.
func (m *Manager) CartSnapshot(ctx context.Context) (*cart.Cart, error) {
	if m.Mode() == ModeGuest {
		lines := m.guest.Load()
		return &cart.Cart{
			Items:      lines,
			GrandTotal: cart.NewPrice(cart.GrandTotal(lines)),
		}, nil
	}

	snapshot, err := m.cart.FetchSnapshot(ctx)
	if err != nil {
		return nil, m.afterRemote(ctx, err)
	}
	// The displayed total is recomputed from the fetched lines, not
	// read back from the server's grand_total field.
	snapshot.GrandTotal = cart.NewPrice(cart.GrandTotal(snapshot.Items))
	return snapshot, nil
}

// CartCount returns the badge count from the active backing.
func (m *Manager) CartCount(ctx context.Context) (int, error) {
	snapshot, err := m.CartSnapshot(ctx)
	if err != nil {
		return 0, err
	}
	return cart.TotalQuantity(snapshot.Items), nil
}

// Checkout submits the payment reference against a fresh snapshot
// and clears the cart on success. An unauthenticated visitor gets
// the unauthorized code so the UI can redirect to login instead of
// failing silently.
func (m *Manager) Checkout(ctx context.Context, transactionID string) (decimal.Decimal, error) {
	if m.Mode() != ModeAuthenticated {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to check out")
	}
	if m.orders == nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInternal, "order service not configured")
	}

	snapshot, err := m.CartSnapshot(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	if len(snapshot.Items) == 0 {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	total := cart.GrandTotal(snapshot.Items)
	items := make([]orders.PaymentItem, 0, len(snapshot.Items))
	for _, line := range snapshot.Items {
		items = append(items, orders.PaymentItem{
			ProductID:    line.ProductID,
			ProductName:  line.ProductName,
			ProductPrice: line.UnitPrice,
			Quantity:     line.Quantity,
		})
	}

	input := orders.SubmitPaymentInput{
		TransactionID: strings.TrimSpace(transactionID),
		TotalAmount:   total,
		Items:         items,
	}
	if err := m.orders.SubmitPayment(ctx, input); err != nil {
		return decimal.Zero, m.afterRemote(ctx, err)
	}

	if err := m.cart.Clear(ctx); err != nil {
		m.warnErr(ctx, "cart clear after checkout failed", err)
	}
	m.notify("Order placed! We'll verify your payment shortly.")
	return total, nil
}

// OrderHistory lists the visitor's past orders.
func (m *Manager) OrderHistory(ctx context.Context) ([]orders.Order, error) {
	if m.Mode() != ModeAuthenticated {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view orders")
	}
	if m.orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service not configured")
	}
	history, err := m.orders.History(ctx)
	if err != nil {
		return nil, m.afterRemote(ctx, err)
	}
	return history, nil
}

// Account reads the signed-in user's full profile.
func (m *Manager) Account(ctx context.Context) (auth.Account, error) {
	if m.Mode() != ModeAuthenticated {
		return auth.Account{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view your profile")
	}
	account, err := m.auth.FetchAccount(ctx)
	if err != nil {
		return auth.Account{}, m.afterRemote(ctx, err)
	}
	return account, nil
}

// UpdateAccount patches the editable profile fields.
func (m *Manager) UpdateAccount(ctx context.Context, input auth.UpdateAccountInput) (auth.Account, error) {
	if m.Mode() != ModeAuthenticated {
		return auth.Account{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to update your profile")
	}
	account, err := m.auth.UpdateAccount(ctx, input)
	if err != nil {
		return auth.Account{}, m.afterRemote(ctx, err)
	}
	m.info(m.logCtx(ctx, map[string]any{"username": account.Username}), "profile updated")
	return account, nil
}

// AllOrders lists every user's orders for the back office. Non-staff
// sessions are refused locally; the server enforces the same rule.
func (m *Manager) AllOrders(ctx context.Context) ([]orders.AdminOrder, error) {
	if err := m.requireStaff(); err != nil {
		return nil, err
	}
	all, err := m.orders.AllOrders(ctx)
	if err != nil {
		return nil, m.afterRemote(ctx, err)
	}
	return all, nil
}

// AllPayments lists every user's payments for the back office.
func (m *Manager) AllPayments(ctx context.Context) ([]orders.AdminPayment, error) {
	if err := m.requireStaff(); err != nil {
		return nil, err
	}
	all, err := m.orders.AllPayments(ctx)
	if err != nil {
		return nil, m.afterRemote(ctx, err)
	}
	return all, nil
}

func (m *Manager) requireStaff() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.mode != ModeAuthenticated {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to view the back office")
	}
	if !m.profile.IsStaff {
		return pkgerrors.New(pkgerrors.CodeForbidden, "staff account required")
	}
	if m.orders == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "order service not configured")
	}
	return nil
}

// afterRemote is the single boundary where a rejected credential
// ends the session: the stored credential is dropped and the session
// falls back to guest mode. Every other failure passes through for
// the caller to report.
func (m *Manager) afterRemote(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) && m.Mode() == ModeAuthenticated {
		m.Logout(ctx)
		m.notify("Your session expired. Please sign in again.")
	}
	return err
}

func (m *Manager) notify(msg string) {
	if m.toast == nil {
		return
	}
	m.toast.Show(msg)
}

func (m *Manager) logCtx(ctx context.Context, fields map[string]any) context.Context {
	if m.logg == nil {
		return ctx
	}
	ctx = m.logg.WithSessionMode(ctx, string(m.Mode()))
	if len(fields) > 0 {
		ctx = m.logg.WithFields(ctx, fields)
	}
	return ctx
}

func (m *Manager) info(ctx context.Context, msg string) {
	if m.logg == nil {
		return
	}
	m.logg.Info(m.logCtx(ctx, nil), msg)
}

func (m *Manager) warnErr(ctx context.Context, msg string, err error) {
	if m.logg == nil {
		return
	}
	dump := pkgerrors.Dump(err)
	ctx = m.logCtx(ctx, map[string]any{
		"error":       dump.TopMessage,
		"error_code":  dump.Code,
		"http_status": dump.HTTPStatus,
	})
	m.logg.Warn(ctx, msg)
}
