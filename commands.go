package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/go-authgate/catalog-admin/api"
	"github.com/go-authgate/catalog-admin/catalog"
	"github.com/go-authgate/catalog-admin/session"
	"github.com/go-authgate/catalog-admin/tui"
)

var errNotLoggedIn = errors.New("not logged in, run `catalog-admin login` first")

// dispatch runs the command named by args[0].
func (a *app) dispatch(ctx context.Context, args []string) error {
	cmd, rest := args[0], args[1:]

	switch cmd {
	case "login":
		return a.login(ctx, rest)
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status(ctx)
	}

	if _, err := a.bootstrap(ctx); err != nil {
		return err
	}

	switch cmd {
	case "whoami":
		return a.whoami(ctx)
	case "products":
		return a.productsCmd(ctx, rest)
	case "dashboard":
		return a.dashboard(ctx)
	default:
		return usagef("unknown command %q", cmd)
	}
}

// bootstrap loads the stored session before an authenticated command.
func (a *app) bootstrap(ctx context.Context) (*session.Session, error) {
	s, err := a.client.Bootstrap(ctx, a.cfg.Revalidate)
	switch {
	case s == nil && err != nil:
		a.d.SessionRejected(err)
		return nil, err
	case s == nil:
		a.d.SessionMissing()
		return nil, errNotLoggedIn
	case err != nil:
		// backend unreachable; the session is kept and the command decides
		a.log.Warnw("session not revalidated", "error", err)
	}

	email, role := "", ""
	if s.User != nil {
		email, role = s.User.Email, s.User.Role
	}
	a.d.SessionFound(email, role)
	return s, nil
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	email := fs.String("email", a.cfg.AdminEmail, "Admin email (ADMIN_EMAIL env)")
	password := fs.String("password", a.cfg.AdminPassword, "Admin password (ADMIN_PASSWORD env)")
	if err := fs.Parse(args); err != nil {
		return usagef("login: %v", err)
	}
	if *email == "" || *password == "" {
		return usagef("login: -email and -password (or ADMIN_EMAIL and ADMIN_PASSWORD) are required")
	}

	a.d.LoggingIn(*email)
	user, err := a.client.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	a.d.LoginOK(user.Email, user.Role)
	a.d.Done("Session saved to " + a.storeName)
	return nil
}

func (a *app) logout(ctx context.Context) error {
	if err := a.client.Logout(ctx); err != nil {
		return err
	}
	a.d.LoggedOut()
	a.d.Done("")
	return nil
}

func (a *app) status(ctx context.Context) error {
	s, err := a.client.Session(ctx)
	if err != nil {
		return err
	}

	info := tui.SessionInfo{
		Server:   a.cfg.ServerURL,
		Store:    a.storeName,
		LoggedIn: s != nil,
	}
	if s != nil {
		if s.User != nil {
			info.Email, info.Role = s.User.Email, s.User.Role
		}
		info.ExpiresIn = tokenExpiresIn(s.AccessToken, time.Now())
	}
	a.d.Session(info)
	a.d.Done("")
	return nil
}

// tokenExpiresIn reads the exp claim of a JWT access token without
// verifying it. It returns 0 when the token carries no readable expiry and
// a negative duration once it has passed.
func tokenExpiresIn(raw string, now time.Time) time.Duration {
	token, _, err := jwt.NewParser().ParseUnverified(raw, jwt.MapClaims{})
	if err != nil {
		return 0
	}
	exp, err := token.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return 0
	}
	left := exp.Sub(now)
	if left <= 0 {
		return min(left, -time.Nanosecond)
	}
	return left
}

func (a *app) whoami(ctx context.Context) error {
	a.d.Working("Fetching profile")
	user, err := a.client.Profile(ctx)
	if err != nil {
		return err
	}
	a.d.Done(fmt.Sprintf("%s (%s), user id %d", user.Email, user.Role, user.UserID))
	return nil
}

func (a *app) productsCmd(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usagef("products: want list, create, update or delete")
	}

	switch sub, rest := args[0], args[1:]; sub {
	case "list":
		return a.listProducts(ctx)

	case "create":
		if len(rest) != 2 {
			return usagef("usage: products create <name> <price>")
		}
		a.d.Working("Creating product")
		p, err := a.products.Create(ctx, rest[0], rest[1])
		if err != nil {
			return err
		}
		a.d.ProductSaved("created", productRow(*p))
		a.d.Done("")
		return nil

	case "update":
		if len(rest) != 3 {
			return usagef("usage: products update <id> <name> <price>")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		a.d.Working("Updating product")
		p, err := a.products.Update(ctx, id, rest[1], rest[2])
		if err != nil {
			return err
		}
		a.d.ProductSaved("updated", productRow(*p))
		a.d.Done("")
		return nil

	case "delete":
		if len(rest) != 1 {
			return usagef("usage: products delete <id>")
		}
		id, err := parseID(rest[0])
		if err != nil {
			return err
		}
		a.d.Working("Deleting product")
		if err := a.products.Delete(ctx, id); err != nil {
			return err
		}
		a.d.Done(fmt.Sprintf("Product %d deleted", id))
		return nil

	default:
		return usagef("products: unknown subcommand %q", sub)
	}
}

func (a *app) listProducts(ctx context.Context) error {
	a.d.Working("Loading products")
	products, err := a.products.List(ctx)
	if err != nil {
		return err
	}
	a.d.Products(productRows(products))
	a.d.Done(fmt.Sprintf("%d product(s)", len(products)))
	return nil
}

// dashboard loads the profile and the product list concurrently. When both
// requests hit an expired token they share a single refresh.
func (a *app) dashboard(ctx context.Context) error {
	a.d.Working("Loading dashboard")

	var (
		user     *session.UserIdentity
		products []catalog.Product
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = a.client.Profile(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		products, err = a.products.List(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}

	a.d.SessionFound(user.Email, user.Role)
	a.d.Products(productRows(products))
	a.d.Done(fmt.Sprintf("%d product(s)", len(products)))
	return nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, usagef("invalid product id %q", raw)
	}
	return id, nil
}

func productRow(p catalog.Product) tui.ProductRow {
	created := ""
	if !p.CreatedAt.IsZero() {
		created = p.CreatedAt.Local().Format("2006-01-02 15:04")
	}
	return tui.ProductRow{ID: p.ID, Name: p.Name, Price: p.Price, Created: created}
}

func productRows(products []catalog.Product) []tui.ProductRow {
	rows := make([]tui.ProductRow, 0, len(products))
	for _, p := range products {
		rows = append(rows, productRow(p))
	}
	return rows
}

// describe renders err for the operator.
func describe(err error) error {
	var ue *usageError
	if errors.As(err, &ue) || errors.Is(err, errNotLoggedIn) {
		return err
	}
	if errors.Is(err, context.Canceled) {
		return errors.New("interrupted")
	}
	return errors.New(catalog.Describe(err))
}

var _ api.Observer = tui.Displayer(nil)
