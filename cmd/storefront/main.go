package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-client/internal/auth"
	"github.com/angelmondragon/storefront-client/internal/cart"
	cartclient "github.com/angelmondragon/storefront-client/internal/cart/client"
	"github.com/angelmondragon/storefront-client/internal/cart/guest"
	"github.com/angelmondragon/storefront-client/internal/catalog"
	"github.com/angelmondragon/storefront-client/internal/localstore"
	"github.com/angelmondragon/storefront-client/internal/orders"
	"github.com/angelmondragon/storefront-client/internal/session"
	"github.com/angelmondragon/storefront-client/internal/toast"
	"github.com/angelmondragon/storefront-client/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-client/pkg/errors"
	"github.com/angelmondragon/storefront-client/pkg/logger"
	"github.com/angelmondragon/storefront-client/pkg/metrics"
	"github.com/angelmondragon/storefront-client/pkg/rest"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "storefront"})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "storefront",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	app, err := buildApp(cfg, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to wire storefront", err)
		os.Exit(1)
	}

	ctx := context.Background()
	app.session.Restore(ctx)
	app.run(ctx)
}

type app struct {
	session *session.Manager
	catalog *catalog.Client
	toaster *toast.Toaster
	out     *bufio.Writer
}

// buildApp constructs the one top-level session manager and the
// collaborators it is threaded through.
func buildApp(cfg *config.Config, logg *logger.Logger) (*app, error) {
	store := localstore.New(cfg.Storage.StateDir, logg)
	creds := &session.Credentials{}
	reqMetrics := metrics.NewRequestMetrics(prometheus.NewRegistry())

	restClient, err := rest.New(cfg.Backend, creds, logg, reqMetrics)
	if err != nil {
		return nil, err
	}

	cartClient, err := cartclient.New(restClient)
	if err != nil {
		return nil, err
	}
	authClient, err := auth.New(restClient, store)
	if err != nil {
		return nil, err
	}
	catalogClient, err := catalog.New(restClient)
	if err != nil {
		return nil, err
	}
	ordersClient, err := orders.New(restClient)
	if err != nil {
		return nil, err
	}

	toaster := toast.New()
	manager, err := session.NewManager(session.Deps{
		Guest:       guest.NewStore(store),
		Cart:        cartClient,
		Auth:        authClient,
		Orders:      ordersClient,
		Credentials: creds,
		Toast:       toaster,
		Logger:      logg,
	})
	if err != nil {
		return nil, err
	}

	return &app{
		session: manager,
		catalog: catalogClient,
		toaster: toaster,
		out:     bufio.NewWriter(os.Stdout),
	}, nil
}

func (a *app) run(ctx context.Context) {
	a.printf("storefront — type 'help' for commands\n")
	a.showPrompt(ctx)

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			a.showPrompt(ctx)
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			break
		}
		a.dispatch(ctx, cmd, args)
		a.showToast()
		a.showPrompt(ctx)
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) {
	switch cmd {
	case "help":
		a.printHelp()
	case "products":
		a.cmdProducts(ctx, args)
	case "view":
		a.cmdView(ctx, args)
	case "add":
		a.cmdAdd(ctx, args)
	case "cart":
		a.cmdCart(ctx)
	case "qty":
		a.cmdQty(ctx, args)
	case "rm":
		a.cmdRemove(ctx, args)
	case "clear":
		a.cmdClear(ctx)
	case "login":
		a.cmdLogin(ctx, args)
	case "register":
		a.cmdRegister(ctx, args)
	case "logout":
		a.session.Logout(ctx)
		a.printf("logged out\n")
	case "checkout":
		a.cmdCheckout(ctx, args)
	case "orders":
		a.cmdOrders(ctx)
	case "profile":
		a.cmdProfile(ctx, args)
	case "ratings":
		a.cmdRatings(ctx, args)
	case "rate":
		a.cmdRate(ctx, args)
	case "unrate":
		a.cmdUnrate(ctx, args)
	case "admin-orders":
		a.cmdAdminOrders(ctx)
	case "admin-payments":
		a.cmdAdminPayments(ctx)
	case "product-add":
		a.cmdProductAdd(ctx, args)
	case "product-rm":
		a.cmdProductRemove(ctx, args)
	case "whoami":
		a.cmdWhoami()
	default:
		a.printf("unknown command %q — type 'help'\n", cmd)
	}
}

func (a *app) printHelp() {
	a.printf(`commands:
  products [search]        list products
  view <id>                product detail
  add <id> [qty]           add to cart
  cart                     show cart
  qty <line-id> <n>        change quantity (0 removes)
  rm <line-id>             remove a line
  clear                    empty the cart
  login <user> <pass>      sign in (guest cart merges over)
  register <user> <email> <pass>
  logout
  checkout <tx-reference>  place the order
  orders                   order history
  profile [first last email]
  ratings <id>             product ratings
  rate <id> <score> [review]
  unrate <id>              remove your rating
  admin-orders             all orders (staff)
  admin-payments           all payments (staff)
  product-add <title> <price> [category]
  product-rm <id>          remove a product (staff)
  whoami
  quit
`)
}

func (a *app) cmdProducts(ctx context.Context, args []string) {
	params := catalog.ListParams{Search: strings.Join(args, " ")}
	products, err := a.catalog.List(ctx, params)
	if err != nil {
		a.reportError(err)
		return
	}
	if len(products) == 0 {
		a.printf("no products found\n")
		return
	}
	for _, p := range products {
		a.printf("  [%s] %-30s $%s\n", p.ID, p.Title, p.Price.StringFixed(2))
	}
}

func (a *app) cmdView(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: view <id>\n")
		return
	}
	product, err := a.catalog.Get(ctx, cart.ID(args[0]))
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("%s — $%s\n", product.Title, product.Price.StringFixed(2))
	if product.Description != "" {
		a.printf("%s\n", product.Description)
	}
}

func (a *app) cmdAdd(ctx context.Context, args []string) {
	if len(args) < 1 {
		a.printf("usage: add <id> [qty]\n")
		return
	}
	qty := 1
	if len(args) > 1 {
		parsed, err := strconv.Atoi(args[1])
		if err != nil || parsed < 1 {
			a.printf("quantity must be a positive integer\n")
			return
		}
		qty = parsed
	}

	product, err := a.catalog.Get(ctx, cart.ID(args[0]))
	if err != nil {
		a.reportError(err)
		return
	}

	count, err := a.session.AddToCart(ctx, guest.Product{
		ID:    product.ID,
		Name:  product.Title,
		Price: product.Price,
		Image: product.Image,
	}, qty)
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("added %s (cart: %d)\n", product.Title, count)
}

func (a *app) cmdCart(ctx context.Context) {
	snapshot, err := a.session.CartSnapshot(ctx)
	if err != nil {
		a.reportError(err)
		return
	}
	if len(snapshot.Items) == 0 {
		a.printf("cart is empty\n")
		return
	}
	for _, line := range snapshot.Items {
		a.printf("  [%s] %-30s x%d  $%s\n",
			line.LineID, line.ProductName, line.Quantity, line.LineTotal().StringFixed(2))
	}
	a.printf("total: $%s (%d items)\n",
		snapshot.GrandTotal.StringFixed(2), cart.TotalQuantity(snapshot.Items))
}

func (a *app) cmdQty(ctx context.Context, args []string) {
	if len(args) != 2 {
		a.printf("usage: qty <line-id> <n>\n")
		return
	}
	qty, err := strconv.Atoi(args[1])
	if err != nil {
		a.printf("quantity must be an integer\n")
		return
	}
	if err := a.session.SetQuantity(ctx, cart.ID(args[0]), qty); err != nil {
		a.reportError(err)
	}
}

func (a *app) cmdRemove(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: rm <line-id>\n")
		return
	}
	if err := a.session.RemoveLine(ctx, cart.ID(args[0])); err != nil {
		a.reportError(err)
	}
}

func (a *app) cmdClear(ctx context.Context) {
	if err := a.session.ClearCart(ctx); err != nil {
		a.reportError(err)
		return
	}
	a.printf("cart cleared\n")
}

func (a *app) cmdLogin(ctx context.Context, args []string) {
	if len(args) != 2 {
		a.printf("usage: login <user> <pass>\n")
		return
	}
	if err := a.session.Login(ctx, args[0], args[1]); err != nil {
		a.reportError(err)
		return
	}
	a.printf("signed in as %s\n", args[0])
}

func (a *app) cmdRegister(ctx context.Context, args []string) {
	if len(args) != 3 {
		a.printf("usage: register <user> <email> <pass>\n")
		return
	}
	msg, err := a.session.Register(ctx, args[0], args[1], args[2])
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("%s\n", msg)
}

func (a *app) cmdCheckout(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: checkout <tx-reference>\n")
		return
	}
	total, err := a.session.Checkout(ctx, args[0])
	if err != nil {
		if pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized) {
			a.printf("please sign in before checking out: login <user> <pass>\n")
			return
		}
		a.reportError(err)
		return
	}
	a.printf("order placed — $%s\n", total.StringFixed(2))
}

func (a *app) cmdOrders(ctx context.Context) {
	history, err := a.session.OrderHistory(ctx)
	if err != nil {
		a.reportError(err)
		return
	}
	if len(history) == 0 {
		a.printf("no orders yet\n")
		return
	}
	for _, order := range history {
		a.printf("  #%s %s — $%s (%s)\n",
			order.ID, order.CreatedAt, order.TotalAmount.StringFixed(2), order.Status)
	}
}

func (a *app) cmdProfile(ctx context.Context, args []string) {
	switch len(args) {
	case 0:
		account, err := a.session.Account(ctx)
		if err != nil {
			a.reportError(err)
			return
		}
		a.printf("%s <%s>\n", account.Username, account.Email)
		if account.FirstName != "" || account.LastName != "" {
			a.printf("%s %s\n", account.FirstName, account.LastName)
		}
		if account.DateJoined != "" {
			a.printf("joined %s\n", account.DateJoined)
		}
	case 3:
		account, err := a.session.UpdateAccount(ctx, auth.UpdateAccountInput{
			FirstName: args[0],
			LastName:  args[1],
			Email:     args[2],
		})
		if err != nil {
			a.reportError(err)
			return
		}
		a.printf("profile updated: %s %s <%s>\n", account.FirstName, account.LastName, account.Email)
	default:
		a.printf("usage: profile [first last email]\n")
	}
}

func (a *app) cmdRatings(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: ratings <id>\n")
		return
	}
	summary, err := a.catalog.Ratings(ctx, cart.ID(args[0]))
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("average %.1f from %d rating(s)\n", summary.Average, summary.Count)
	for _, r := range summary.Ratings {
		a.printf("  %s: %d/5", r.Username, r.Score)
		if r.Review != "" {
			a.printf(" — %s", r.Review)
		}
		a.printf(" (%s)\n", r.CreatedAt)
	}
}

func (a *app) cmdRate(ctx context.Context, args []string) {
	if len(args) < 2 {
		a.printf("usage: rate <id> <score> [review]\n")
		return
	}
	score, err := strconv.Atoi(args[1])
	if err != nil {
		a.printf("score must be an integer from 1 to 5\n")
		return
	}
	result, err := a.catalog.SubmitRating(ctx, cart.ID(args[0]), score, strings.Join(args[2:], " "))
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("%s (average now %.1f)\n", result.Message, result.NewAverage)
}

func (a *app) cmdUnrate(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: unrate <id>\n")
		return
	}
	if err := a.catalog.DeleteRating(ctx, cart.ID(args[0])); err != nil {
		a.reportError(err)
		return
	}
	a.printf("rating removed\n")
}

func (a *app) cmdAdminOrders(ctx context.Context) {
	all, err := a.session.AllOrders(ctx)
	if err != nil {
		a.reportError(err)
		return
	}
	if len(all) == 0 {
		a.printf("no orders\n")
		return
	}
	for _, order := range all {
		a.printf("  #%s %-12s $%s %s (%d items, %s)\n",
			order.ID, order.Username, order.TotalAmount.StringFixed(2),
			order.Status, order.ItemCount, order.CreatedAt)
	}
}

func (a *app) cmdAdminPayments(ctx context.Context) {
	all, err := a.session.AllPayments(ctx)
	if err != nil {
		a.reportError(err)
		return
	}
	if len(all) == 0 {
		a.printf("no payments\n")
		return
	}
	for _, payment := range all {
		a.printf("  #%s %-12s %s $%s %s\n",
			payment.ID, payment.Username, payment.TransactionID,
			payment.TotalAmount.StringFixed(2), payment.Status)
	}
}

func (a *app) cmdProductAdd(ctx context.Context, args []string) {
	if len(args) < 2 {
		a.printf("usage: product-add <title> <price> [category]\n")
		return
	}
	price, err := decimal.NewFromString(args[1])
	if err != nil {
		a.printf("price must be a decimal amount\n")
		return
	}
	input := catalog.ProductInput{Title: args[0], Price: cart.NewPrice(price)}
	if len(args) > 2 {
		input.Category = args[2]
	}
	product, err := a.catalog.CreateProduct(ctx, input)
	if err != nil {
		a.reportError(err)
		return
	}
	a.printf("created [%s] %s\n", product.ID, product.Title)
}

func (a *app) cmdProductRemove(ctx context.Context, args []string) {
	if len(args) != 1 {
		a.printf("usage: product-rm <id>\n")
		return
	}
	if err := a.catalog.DeleteProduct(ctx, cart.ID(args[0])); err != nil {
		a.reportError(err)
		return
	}
	a.printf("product removed\n")
}

func (a *app) cmdWhoami() {
	if profile, ok := a.session.Profile(); ok {
		a.printf("signed in as %s\n", profile.Username)
		return
	}
	a.printf("browsing as guest\n")
}

func (a *app) showPrompt(ctx context.Context) {
	count, err := a.session.CartCount(ctx)
	if err != nil {
		count = 0
	}
	a.printf("[%s | cart:%d] > ", a.session.Mode(), count)
	a.out.Flush()
}

func (a *app) showToast() {
	if msg, ok := a.toaster.Current(); ok {
		a.printf("* %s\n", msg)
	}
}

func (a *app) reportError(err error) {
	if typed := pkgerrors.As(err); typed != nil {
		a.printf("error: %s\n", typed.Message())
		return
	}
	a.printf("error: %v\n", err)
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
	a.out.Flush()
}
