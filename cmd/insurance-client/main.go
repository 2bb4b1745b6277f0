// Command insurance-client is the terminal front end: it wires the
// session store, token refresher, catalog loader, quotation wizard and
// draft protocol together and drives them from an interactive prompt.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"

	"github.com/BITS-DEVSEC/im-client/internal/api"
	"github.com/BITS-DEVSEC/im-client/internal/catalog"
	"github.com/BITS-DEVSEC/im-client/internal/config"
	"github.com/BITS-DEVSEC/im-client/internal/logger"
	"github.com/BITS-DEVSEC/im-client/internal/nav"
	"github.com/BITS-DEVSEC/im-client/internal/notify"
	"github.com/BITS-DEVSEC/im-client/internal/quotation"
	"github.com/BITS-DEVSEC/im-client/internal/session"
	"github.com/BITS-DEVSEC/im-client/internal/wizard"
)

// terminalNav prints screen changes; the REPL below is screen-agnostic
// so navigation is informational rather than modal.
type terminalNav struct{}

func (terminalNav) Go(screen nav.Screen, query url.Values) {
	if len(query) > 0 {
		fmt.Printf("-> %s?%s\n", screen, query.Encode())
		return
	}
	fmt.Printf("-> %s\n", screen)
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	configPath := flag.String("config", "config.yaml", "path to config file")
	startStep := flag.String("step", "", "wizard step to resume at (overrides saved route)")
	draftID := flag.Int("draft-id", 0, "backend draft id to rehydrate (overrides saved route)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	sugar, err := logger.New(cfg.Env)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	client, err := api.NewClient(api.Config{BaseURL: cfg.API.BaseURL, Timeout: cfg.APITimeout}, sugar)
	if err != nil {
		sugar.Fatalf("failed to build api client: %v", err)
	}

	notifier := &notify.Terminal{W: os.Stdout}
	navigator := terminalNav{}
	userFile := session.NewUserFile(cfg.StateDir)
	store := session.NewStore(client, userFile, notifier, navigator, sugar)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cat := catalog.NewLoader(client, notifier, sugar)
	store.OnTokenChange(func(token string) {
		cat.OnToken(ctx, token)
	})

	refresher := session.NewRefresher(store, cfg.RefreshInterval, cfg.RefreshMargin, notifier, navigator, sugar)
	refresher.Start(ctx)
	defer refresher.Stop()

	proto := quotation.NewProtocol(client, store, notifier, sugar)
	route := wizard.NewFileRoute(cfg.StateDir)
	scratch := wizard.NewFileScratch(cfg.StateDir)
	wiz := wizard.New(cat, proto, route, scratch, navigator, sugar)

	if *startStep != "" || *draftID > 0 {
		vals := route.Read()
		if *startStep != "" {
			vals.Set("step", *startStep)
		}
		if *draftID > 0 {
			vals.Set("draftId", strconv.Itoa(*draftID))
		}
		route.Write(vals)
	}
	wiz.Resume(ctx)

	repl(ctx, &app{
		store:    store,
		catalog:  cat,
		wizard:   wiz,
		protocol: proto,
	})
}

type app struct {
	store    *session.Store
	catalog  *catalog.Loader
	wizard   *wizard.Wizard
	protocol *quotation.Protocol
}

func repl(ctx context.Context, a *app) {
	fmt.Println("insurance-client ready. Type 'help' for commands.")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Printf("[%s] > ", a.wizard.Step())
		if !scanner.Scan() {
			return
		}
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return
		}
		if err := a.dispatch(ctx, cmd, args); err != nil {
			fmt.Println("error:", err)
		}
	}
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		printHelp()
		return nil

	case "login":
		if len(args) != 2 {
			return fmt.Errorf("usage: login <email-or-phone> <password>")
		}
		creds := session.Credentials{Password: args[1]}
		if strings.Contains(args[0], "@") {
			creds.Email = args[0]
		} else {
			creds.PhoneNumber = args[0]
		}
		return a.store.Login(ctx, creds)

	case "logout":
		a.store.Logout(ctx)
		return nil

	case "whoami":
		user, ok := a.store.CurrentUser()
		if !ok {
			fmt.Println("not logged in")
			return nil
		}
		fmt.Printf("#%d email=%s phone=%s roles=%v\n", user.ID, user.Email, user.PhoneNumber, user.Roles)
		return nil

	case "register-customer":
		if len(args) != 4 {
			return fmt.Errorf("usage: register-customer <phone> <fin> <password> <confirmation>")
		}
		return a.store.RegisterCustomer(ctx, session.CustomerRegistration{
			PhoneNumber: args[0], FIN: args[1], Password: args[2], PasswordConfirmation: args[3],
		})

	case "register-user":
		if len(args) != 4 {
			return fmt.Errorf("usage: register-user <email> <password> <confirmation> <role>")
		}
		return a.store.RegisterUser(ctx, session.UserRegistration{
			Email: args[0], Password: args[1], PasswordConfirmation: args[2], Role: args[3],
		})

	case "verify-otp":
		if len(args) != 2 {
			return fmt.Errorf("usage: verify-otp <phone> <code>")
		}
		return a.store.VerifyOTP(ctx, session.OTPVerification{PhoneNumber: args[0], OTP: args[1]})

	case "verify-email":
		if len(args) != 2 {
			return fmt.Errorf("usage: verify-email <email> <token>")
		}
		return a.store.VerifyEmail(ctx, session.EmailVerification{Email: args[0], VerificationToken: args[1]})

	case "forgot-password":
		if len(args) != 1 {
			return fmt.Errorf("usage: forgot-password <email>")
		}
		return a.store.ForgotPassword(ctx, args[0])

	case "reset-password":
		if len(args) != 4 {
			return fmt.Errorf("usage: reset-password <email> <token> <password> <confirmation>")
		}
		return a.store.ResetPassword(ctx, session.PasswordReset{
			Email: args[0], ResetToken: args[1], Password: args[2], PasswordConfirmation: args[3],
		})

	case "types":
		snap := a.catalog.Snapshot()
		if snap.Loading {
			fmt.Println("catalog loading...")
			return nil
		}
		if snap.Err != "" {
			fmt.Println("catalog error:", snap.Err)
			return nil
		}
		for _, t := range snap.InsuranceTypes {
			fmt.Printf("%d %s — %s\n", t.ID, t.Name, t.Description)
			for _, c := range t.CoverageTypes {
				fmt.Printf("   %d %s — %s\n", c.ID, c.Name, c.Description)
			}
		}
		return nil

	case "drafts":
		list, err := a.protocol.List(ctx)
		if err != nil {
			return err
		}
		for _, d := range list {
			fmt.Printf("#%d [%s] %d %s %s plate=%s coverage=%s\n",
				d.ID, d.Status, d.YearOfManufacture, d.Make, d.Model, d.PlateNumber, d.CoverageTypeName)
		}
		return nil

	case "back":
		a.wizard.Back()
		return nil

	case "category":
		if len(args) != 1 {
			return fmt.Errorf("usage: category <motor|home|life>")
		}
		return a.wizard.SelectCategory(args[0])

	case "coverage":
		if len(args) < 1 {
			return fmt.Errorf("usage: coverage <name>")
		}
		return a.wizard.SelectCoverage(strings.Join(args, " "))

	case "compensation":
		if len(args) != 1 {
			return fmt.Errorf("usage: compensation <amount>")
		}
		amount, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid amount: %w", err)
		}
		a.wizard.SubmitCompensation(amount)
		return nil

	case "vehicle":
		// vehicle <type> <usage> <passengers> <price> <region> <zone> <woreda> <kebele>
		if len(args) != 8 {
			return fmt.Errorf("usage: vehicle <type> <usage> <passengers> <price> <region> <zone> <woreda> <kebele>")
		}
		passengers, err := strconv.Atoi(args[2])
		if err != nil {
			return fmt.Errorf("invalid passenger count: %w", err)
		}
		price, err := strconv.ParseFloat(args[3], 64)
		if err != nil {
			return fmt.Errorf("invalid price: %w", err)
		}
		a.wizard.SubmitVehicleDetails(
			wizard.VehicleDetails{
				VehicleType:        args[0],
				VehicleUsage:       args[1],
				NumberOfPassengers: passengers,
				CarPrice:           price,
			},
			wizard.ResidenceAddress{Region: args[4], Zone: args[5], Woreda: args[6], Kebele: args[7]},
		)
		return nil

	case "attributes":
		// attributes <plate> <chassis> <engine> <make> <model> <year> <value>
		if len(args) != 7 {
			return fmt.Errorf("usage: attributes <plate> <chassis> <engine> <make> <model> <year> <value>")
		}
		year, err := strconv.Atoi(args[5])
		if err != nil {
			return fmt.Errorf("invalid year: %w", err)
		}
		value, err := strconv.ParseFloat(args[6], 64)
		if err != nil {
			return fmt.Errorf("invalid value: %w", err)
		}
		a.wizard.SubmitVehicleAttributes(wizard.VehicleAttributes{
			PlateNumber:       args[0],
			ChassisNumber:     args[1],
			EngineNumber:      args[2],
			Make:              args[3],
			Model:             args[4],
			YearOfManufacture: year,
			EstimatedValue:    value,
		})
		return nil

	case "photo":
		if len(args) != 2 {
			return fmt.Errorf("usage: photo <slot> <file>")
		}
		slot := wizard.PhotoSlot(args[0])
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("failed to read photo: %w", err)
		}
		a.wizard.AttachPhoto(slot, args[1], data)
		return nil

	case "remove-photo":
		if len(args) != 1 {
			return fmt.Errorf("usage: remove-photo <slot>")
		}
		a.wizard.RemovePhoto(wizard.PhotoSlot(args[0]))
		return nil

	case "save":
		a.wizard.SaveDraft(ctx)
		return nil

	case "submit":
		return a.wizard.SubmitFinal(ctx)

	case "draft":
		d := a.wizard.Draft()
		fmt.Printf("draftId=%d type=%d coverage=%d amount=%.2f\n", d.DraftID, d.InsuranceTypeID, d.CoverageTypeID, d.CoverageAmount)
		for _, slot := range wizard.PhotoSlots {
			p := d.Photo(slot)
			switch p.State {
			case wizard.PhotoPending:
				fmt.Printf("  %s: pending (%s)\n", slot, p.Filename)
			case wizard.PhotoStored:
				fmt.Printf("  %s: stored (%s)\n", slot, p.URL)
			}
		}
		return nil

	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func printHelp() {
	fmt.Print(`auth:
  login <email-or-phone> <password>
  logout | whoami
  register-customer <phone> <fin> <password> <confirmation>
  register-user <email> <password> <confirmation> <role>
  verify-otp <phone> <code> | verify-email <email> <token>
  forgot-password <email>
  reset-password <email> <token> <password> <confirmation>
catalog:
  types | drafts
wizard:
  category <motor|home|life> | coverage <name> | back
  compensation <amount>
  vehicle <type> <usage> <passengers> <price> <region> <zone> <woreda> <kebele>
  attributes <plate> <chassis> <engine> <make> <model> <year> <value>
  photo <slot> <file> | remove-photo <slot>
  save | submit | draft
  quit
`)
}
