package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"text/tabwriter"

	"go.uber.org/zap"

	"storefront/internal/admin"
	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/config"
	"storefront/internal/domain"
	"storefront/internal/order"
	"storefront/internal/session"
	"storefront/internal/shipping"
)

const usage = `Usage: storefront <command> [flags]

Account:
  register      Create an account and log in
  login         Log in with email and password
  logout        Clear the stored session
  whoami        Show the current session

Catalog:
  products      List products (-category, -search, -min-price, -max-price)
  product       Show one product: product <id>
  categories    List category labels

Shopping:
  cart          Show the cart, or: cart add|set|remove|clear
  checkout      Create an order from the cart and pay for it
  orders        List your orders
  order         Show one order: order <id>
  returns       List return requests, or: returns request
  track         Track a shipment (-order or -number)

Admin:
  admin         Privileged operations: admin <subcommand> (see admin -help)
`

type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	sessions *session.Store
	catalog  catalog.Service
	cart     cart.Synchronizer
	orders   order.Service
	shipping shipping.Service
	admin    admin.Manager
}

// ctx bounds one command invocation. Commands that chain dependent
// requests (checkout) share a single deadline, so nothing outlives the
// invocation that triggered it.
func (a *app) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), 4*a.cfg.Backend.Timeout)
}

func (a *app) run(args []string) int {
	if len(args) == 0 {
		fmt.Fprint(os.Stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "register":
		err = a.cmdRegister(args[1:])
	case "login":
		err = a.cmdLogin(args[1:])
	case "logout":
		err = a.sessions.Logout()
	case "whoami":
		err = a.cmdWhoami(args[1:])
	case "products":
		err = a.cmdProducts(args[1:])
	case "product":
		err = a.cmdProduct(args[1:])
	case "categories":
		err = a.cmdCategories(args[1:])
	case "cart":
		err = a.cmdCart(args[1:])
	case "checkout":
		err = a.cmdCheckout(args[1:])
	case "orders":
		err = a.cmdOrders(args[1:])
	case "order":
		err = a.cmdOrder(args[1:])
	case "returns":
		err = a.cmdReturns(args[1:])
	case "track":
		err = a.cmdTrack(args[1:])
	case "admin":
		err = a.cmdAdmin(args[1:])
	case "help", "-h", "--help":
		fmt.Print(usage)
		return 0
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", args[0], usage)
		return 2
	}

	if err != nil {
		a.renderError(err)
		return 1
	}
	return 0
}

// renderError turns the error taxonomy into user-facing messages the
// way the web views turn them into redirects and toasts.
func (a *app) renderError(err error) {
	switch {
	case api.IsAuth(err):
		fmt.Fprintln(os.Stderr, "You are not logged in. Run: storefront login")
	case api.IsForbidden(err):
		fmt.Fprintln(os.Stderr, "Admin access is required for this command.")
	case api.IsValidation(err):
		fmt.Fprintf(os.Stderr, "Invalid input: %v\n", err)
	case api.IsNotFound(err):
		fmt.Fprintln(os.Stderr, "Not found.")
	case api.IsNetwork(err):
		fmt.Fprintln(os.Stderr, "The store is unreachable right now. Please try again.")
		a.logger.Debug("Network failure", zap.Error(err))
	default:
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
}

func (a *app) cmdRegister(args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	name := fs.String("name", "", "full name")
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	ctx, cancel := a.ctx()
	defer cancel()

	sess, err := a.sessions.Register(ctx, *name, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Welcome, %s. You are now logged in.\n", sess.User.Name)
	return nil
}

func (a *app) cmdLogin(args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "email address")
	password := fs.String("password", "", "password")
	fs.Parse(args)

	ctx, cancel := a.ctx()
	defer cancel()

	sess, err := a.sessions.Login(ctx, *email, *password)
	if err != nil {
		return err
	}
	fmt.Printf("Logged in as %s <%s>\n", sess.User.Name, sess.User.Email)
	return nil
}

func (a *app) cmdWhoami(args []string) error {
	ctx, cancel := a.ctx()
	defer cancel()

	sess, err := a.sessions.Revalidate(ctx)
	if err != nil {
		return err
	}
	role := "customer"
	if sess.User.IsAdmin {
		role = "admin"
	}
	fmt.Printf("%s <%s> (%s)\n", sess.User.Name, sess.User.Email, role)
	return nil
}

func (a *app) cmdProducts(args []string) error {
	fs := flag.NewFlagSet("products", flag.ExitOnError)
	category := fs.String("category", "", "exact category match")
	search := fs.String("search", "", "match against product names and descriptions")
	minPrice := fs.Float64("min-price", -1, "inclusive lower price bound")
	maxPrice := fs.Float64("max-price", -1, "inclusive upper price bound")
	fs.Parse(args)

	filter := catalog.Filter{Category: *category, Search: *search}
	if *minPrice >= 0 {
		filter.MinPrice = minPrice
	}
	if *maxPrice >= 0 {
		filter.MaxPrice = maxPrice
	}

	ctx, cancel := a.ctx()
	defer cancel()

	products, err := a.catalog.ListProducts(ctx, filter)
	if err != nil {
		return err
	}
	if len(products) == 0 {
		fmt.Println("No products found.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCATEGORY\tPRICE\tSTOCK")
	for _, p := range products {
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%d\n", p.ID, p.Name, p.Category, p.Price, p.Stock)
	}
	return w.Flush()
}

func (a *app) cmdProduct(args []string) error {
	if len(args) != 1 {
		return &api.ValidationError{Message: "usage: storefront product <id>"}
	}

	ctx, cancel := a.ctx()
	defer cancel()

	p, err := a.catalog.GetProduct(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("%s\n%s\nCategory: %s  Price: %.2f  Stock: %d\n", p.Name, p.Description, p.Category, p.Price, p.Stock)
	return nil
}

func (a *app) cmdCategories(args []string) error {
	ctx, cancel := a.ctx()
	defer cancel()

	categories, err := a.catalog.ListCategories(ctx)
	if err != nil {
		return err
	}
	for _, c := range categories {
		fmt.Println(c)
	}
	return nil
}

func (a *app) cmdCart(args []string) error {
	if len(args) == 0 {
		args = []string{"show"}
	}

	ctx, cancel := a.ctx()
	defer cancel()

	switch args[0] {
	case "show":
		c, err := a.cart.Get(ctx)
		if err != nil {
			return err
		}
		a.printCart(c)
		return nil
	case "add":
		fs := flag.NewFlagSet("cart add", flag.ExitOnError)
		productID := fs.String("product", "", "product id")
		quantity := fs.Int("quantity", 1, "quantity to add")
		fs.Parse(args[1:])

		// Snapshot the unit price at add time, as the backend expects.
		p, err := a.catalog.GetProduct(ctx, *productID)
		if err != nil {
			return err
		}
		c, err := a.cart.AddItem(ctx, p.ID, *quantity, p.Price)
		if err != nil {
			return err
		}
		a.printCart(c)
		return nil
	case "set":
		fs := flag.NewFlagSet("cart set", flag.ExitOnError)
		productID := fs.String("product", "", "product id")
		quantity := fs.Int("quantity", 0, "new quantity (0 removes the line)")
		fs.Parse(args[1:])

		c, err := a.cart.SetQuantity(ctx, *productID, *quantity)
		if err != nil {
			return err
		}
		a.printCart(c)
		return nil
	case "remove":
		fs := flag.NewFlagSet("cart remove", flag.ExitOnError)
		productID := fs.String("product", "", "product id")
		fs.Parse(args[1:])

		c, err := a.cart.RemoveItem(ctx, *productID)
		if err != nil {
			return err
		}
		a.printCart(c)
		return nil
	case "clear":
		if err := a.cart.Clear(ctx); err != nil {
			return err
		}
		fmt.Println("Cart cleared.")
		return nil
	default:
		return &api.ValidationError{Message: "usage: storefront cart [show|add|set|remove|clear]"}
	}
}

func (a *app) printCart(c *domain.Cart) {
	if len(c.Items) == 0 {
		fmt.Println("Your cart is empty.")
		return
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "PRODUCT\tQTY\tUNIT PRICE\tLINE TOTAL")
	for _, line := range c.Items {
		fmt.Fprintf(w, "%s\t%d\t%.2f\t%.2f\n", line.ProductID, line.Quantity, line.Price, line.Price*float64(line.Quantity))
	}
	w.Flush()
	fmt.Printf("Total: %.2f\n", cart.Total(c))
}

func (a *app) cmdCheckout(args []string) error {
	fs := flag.NewFlagSet("checkout", flag.ExitOnError)
	contact := fs.String("contact", "", "contact name")
	address := fs.String("address", "", "street address")
	city := fs.String("city", "", "city")
	country := fs.String("country", "", "country")
	zip := fs.String("zip", "", "zip code")
	buyerName := fs.String("buyer-name", "", "buyer first name")
	buyerSurname := fs.String("buyer-surname", "", "buyer surname")
	cardNumber := fs.String("card-number", "", "card number")
	cardHolder := fs.String("card-holder", "", "cardholder name")
	expMonth := fs.String("exp-month", "", "card expiry month")
	expYear := fs.String("exp-year", "", "card expiry year")
	cvc := fs.String("cvc", "", "card security code")
	fs.Parse(args)

	ctx, cancel := a.ctx()
	defer cancel()

	current, err := a.cart.Get(ctx)
	if err != nil {
		return err
	}
	if len(current.Items) == 0 {
		return &api.ValidationError{Message: "cart is empty"}
	}

	shippingAddr := domain.Address{
		ContactName: *contact,
		Address:     *address,
		City:        *city,
		Country:     *country,
		ZipCode:     *zip,
	}
	buyer := domain.BuyerInfo{Name: *buyerName, Surname: *buyerSurname}

	// Two phases, strictly sequenced: payment is only attempted once
	// the order exists.
	o, err := a.orders.Create(ctx, current.Items, shippingAddr, shippingAddr, buyer)
	if err != nil {
		return err
	}
	fmt.Printf("Order %s created (total %.2f).\n", o.ID, o.TotalAmount)

	card := order.Card{
		Number:      *cardNumber,
		HolderName:  *cardHolder,
		ExpireMonth: *expMonth,
		ExpireYear:  *expYear,
		CVC:         *cvc,
	}
	result, err := a.orders.ProcessPayment(ctx, o.ID, card)
	if err != nil {
		return err
	}
	if !result.Success {
		// The order stays pending; the user can retry payment.
		fmt.Printf("Payment was not accepted: %s\nOrder %s remains pending.\n", result.Message, o.ID)
		return nil
	}
	fmt.Printf("Payment accepted (payment id %s). Thank you!\n", result.PaymentID)
	return nil
}

func (a *app) cmdOrders(args []string) error {
	ctx, cancel := a.ctx()
	defer cancel()

	orders, err := a.orders.List(ctx)
	if err != nil {
		return err
	}
	if len(orders) == 0 {
		fmt.Println("No orders yet.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", o.ID, o.Status, o.TotalAmount, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	return w.Flush()
}

func (a *app) cmdOrder(args []string) error {
	if len(args) != 1 {
		return &api.ValidationError{Message: "usage: storefront order <id>"}
	}

	ctx, cancel := a.ctx()
	defer cancel()

	o, err := a.orders.Get(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Order %s  status: %s  total: %.2f\n", o.ID, o.Status, o.TotalAmount)
	for _, line := range o.Items {
		fmt.Printf("  %s x%d @ %.2f\n", line.ProductID, line.Quantity, line.Price)
	}

	// Tracking is opportunistic: absence is a normal state for orders
	// that have not shipped, never an error.
	if o.Status.Shippable() {
		shipment, err := a.shipping.TrackByOrder(ctx, o.ID)
		switch {
		case api.IsNotFound(err):
			fmt.Println("Tracking not yet available.")
		case err != nil:
			return err
		default:
			a.printShipment(shipment)
		}
	}
	return nil
}

func (a *app) cmdReturns(args []string) error {
	ctx, cancel := a.ctx()
	defer cancel()

	if len(args) > 0 && args[0] == "request" {
		fs := flag.NewFlagSet("returns request", flag.ExitOnError)
		orderID := fs.String("order", "", "order id")
		productID := fs.String("product", "", "product id to return")
		quantity := fs.Int("quantity", 1, "quantity to return")
		reason := fs.String("reason", "", "reason for the return")
		fs.Parse(args[1:])

		items := []domain.ReturnItem{{ProductID: *productID, Quantity: *quantity}}
		ret, err := a.orders.RequestReturn(ctx, *orderID, items, *reason)
		if err != nil {
			return err
		}
		fmt.Printf("Return %s filed (status %s).\n", ret.ID, ret.Status)
		return nil
	}

	returns, err := a.orders.ListReturns(ctx)
	if err != nil {
		return err
	}
	if len(returns) == 0 {
		fmt.Println("No return requests.")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tORDER\tSTATUS\tREASON")
	for _, ret := range returns {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ret.ID, ret.OrderID, ret.Status, ret.Reason)
	}
	return w.Flush()
}

func (a *app) cmdTrack(args []string) error {
	fs := flag.NewFlagSet("track", flag.ExitOnError)
	orderID := fs.String("order", "", "order id (requires login)")
	number := fs.String("number", "", "tracking number (public)")
	fs.Parse(args)

	ctx, cancel := a.ctx()
	defer cancel()

	var (
		shipment *domain.Shipment
		err      error
	)
	switch {
	case *number != "":
		shipment, err = a.shipping.TrackByNumber(ctx, *number)
	case *orderID != "":
		shipment, err = a.shipping.TrackByOrder(ctx, *orderID)
	default:
		return &api.ValidationError{Message: "provide -order or -number"}
	}
	if api.IsNotFound(err) {
		fmt.Println("Tracking not yet available.")
		return nil
	}
	if err != nil {
		return err
	}
	a.printShipment(shipment)
	return nil
}

func (a *app) printShipment(s *domain.Shipment) {
	fmt.Printf("Shipment %s via %s: %s", s.TrackingNumber, s.Carrier, s.Status)
	if s.CurrentLocation != "" {
		fmt.Printf(" (%s)", s.CurrentLocation)
	}
	fmt.Println()
	for _, e := range s.Events {
		fmt.Printf("  %s  %s  %s\n", e.Date.Format("2006-01-02 15:04"), e.Status, e.Location)
	}
}

const adminUsage = `Usage: storefront admin <subcommand> [flags]

  product-create   Add a product to the catalog
  product-update   Update a product: product-update <id> [flags]
  product-delete   Delete a product: product-delete <id>
  orders           List all orders
  order-status     Set an order's status: order-status <id> <status>
  ship             Register shipping info for an order
  ship-status      Set a shipment's status: ship-status <order-id> <status>
  returns          List all return requests
  return-status    Set a return's status: return-status <id> <status>
`

func (a *app) cmdAdmin(args []string) error {
	if len(args) == 0 || args[0] == "-help" || args[0] == "--help" {
		fmt.Print(adminUsage)
		return nil
	}

	ctx, cancel := a.ctx()
	defer cancel()

	switch args[0] {
	case "product-create":
		input := parseProductFlags("admin product-create", args[1:])
		p, err := a.admin.CreateProduct(ctx, *input)
		if err != nil {
			return err
		}
		fmt.Printf("Product %s created.\n", p.ID)
		return nil
	case "product-update":
		if len(args) < 2 {
			return &api.ValidationError{Message: "usage: storefront admin product-update <id> [flags]"}
		}
		input := parseProductFlags("admin product-update", args[2:])
		if err := a.admin.UpdateProduct(ctx, args[1], *input); err != nil {
			return err
		}
		fmt.Println("Product updated.")
		return nil
	case "product-delete":
		if len(args) != 2 {
			return &api.ValidationError{Message: "usage: storefront admin product-delete <id>"}
		}
		if err := a.admin.DeleteProduct(ctx, args[1]); err != nil {
			return err
		}
		fmt.Println("Product deleted.")
		return nil
	case "orders":
		orders, err := a.orders.ListAll(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tUSER\tSTATUS\tTOTAL")
		for _, o := range orders {
			fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\n", o.ID, o.UserID, o.Status, o.TotalAmount)
		}
		return w.Flush()
	case "order-status":
		if len(args) != 3 {
			return &api.ValidationError{Message: "usage: storefront admin order-status <id> <status>"}
		}
		return a.orders.UpdateStatus(ctx, args[1], domain.OrderStatus(args[2]))
	case "ship":
		fs := flag.NewFlagSet("admin ship", flag.ExitOnError)
		orderID := fs.String("order", "", "order id")
		carrier := fs.String("carrier", "", "carrier name")
		trackingNumber := fs.String("tracking", "", "tracking number")
		fs.Parse(args[1:])

		info, err := a.shipping.CreateShipment(ctx, *orderID, *carrier, *trackingNumber)
		if err != nil {
			return err
		}
		fmt.Printf("Order %s shipped via %s (%s).\n", info.OrderID, info.Carrier, info.TrackingNumber)
		return nil
	case "ship-status":
		if len(args) != 3 {
			return &api.ValidationError{Message: "usage: storefront admin ship-status <order-id> <status>"}
		}
		_, err := a.shipping.UpdateStatus(ctx, args[1], domain.ShipmentStatus(args[2]))
		return err
	case "returns":
		returns, err := a.orders.ListAllReturns(ctx)
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tORDER\tUSER\tSTATUS")
		for _, ret := range returns {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", ret.ID, ret.OrderID, ret.UserID, ret.Status)
		}
		return w.Flush()
	case "return-status":
		if len(args) != 3 {
			return &api.ValidationError{Message: "usage: storefront admin return-status <id> <status>"}
		}
		_, err := a.orders.UpdateReturnStatus(ctx, args[1], args[2])
		return err
	default:
		return &api.ValidationError{Message: fmt.Sprintf("unknown admin subcommand %q", args[0])}
	}
}

func parseProductFlags(name string, args []string) *admin.ProductInput {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	pName := fs.String("name", "", "product name")
	description := fs.String("description", "", "product description")
	price := fs.Float64("price", 0, "unit price")
	category := fs.String("category", "", "category label")
	imageURL := fs.String("image-url", "", "image URL")
	stock := fs.Int("stock", 0, "stock count")
	fs.Parse(args)

	return &admin.ProductInput{
		Name:        *pName,
		Description: *description,
		Price:       *price,
		Category:    *category,
		ImageURL:    *imageURL,
		Stock:       *stock,
	}
}
