// Package wizard drives the eight-step signup and onboarding flow.
package wizard

import (
	"context"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"profitpilot/models"
	"profitpilot/services/backend"
	"profitpilot/services/formstore"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const genericFailure = "Something went wrong. Please try again."

// Navigation tells the client to leave the wizard.
type Navigation struct {
	Kind string `json:"kind"`
	URL  string `json:"url"`

	// Target is "_top"; clients that cannot navigate the top-level context open a new tab.
	Target string `json:"target"`
}

const (
	NavPackageSelection = "package_selection"
	NavCheckout         = "checkout"
	NavDashboard        = "dashboard"
)

// Notice is a transient message for the user. It is never persisted.
type Notice struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

// View is everything a client needs to render the current step.
type View struct {
	Step                  models.StepIndex       `json:"step"`
	Descriptor            StepDescriptor         `json:"descriptor"`
	Form                  models.WizardFormState `json:"form"`
	Errors                FieldErrors            `json:"errors"`
	Loading               bool                   `json:"loading"`
	Location              string                 `json:"location"`
	UserIdentity          *models.UserIdentity   `json:"userIdentity,omitempty"`
	NeedsPackageSelection bool                   `json:"needsPackageSelection"`
	AmazonConnected       *bool                  `json:"amazonConnected,omitempty"`
	AmazonConnectURL      string                 `json:"amazonConnectUrl,omitempty"`
	Reference             *models.ReferenceData  `json:"reference,omitempty"`
	Notice                *Notice                `json:"notice,omitempty"`
	Navigation            *Navigation            `json:"navigation,omitempty"`
	Finished              bool                   `json:"finished"`
}

// MountParams are the page query parameters read once per mount.
type MountParams struct {
	Ref             string
	Pricing         string
	Email           string
	FullName        string
	Step            string
	Token           string
	AmazonConnected string
	AmazonError     string
}

// MountParamsFromQuery extracts the parameters the wizard understands.
func MountParamsFromQuery(q url.Values) MountParams {
	return MountParams{
		Ref:             q.Get("ref"),
		Pricing:         q.Get("pricing"),
		Email:           q.Get("email"),
		FullName:        q.Get("fullname"),
		Step:            q.Get("step"),
		Token:           q.Get("token"),
		AmazonConnected: q.Get("amazon_connected"),
		AmazonError:     q.Get("amazon_error"),
	}
}

// FormPatch carries user input. Nil fields are left unchanged.
type FormPatch struct {
	FullName          *string   `json:"fullName"`
	Email             *string   `json:"email"`
	Password          *string   `json:"password"`
	ConfirmPassword   *string   `json:"confirmPassword"`
	ExperienceLevelID *string   `json:"experienceLevelId"`
	CategoryIDs       *[]string `json:"categoryIds"`
	CountryID         *string   `json:"countryId"`

	// Touch marks fields as touched so their errors become visible.
	Touch []string `json:"touch"`
}

// CompletionSink receives the record of a finished onboarding.
type CompletionSink interface {
	Completed(ctx context.Context, record models.OnboardingRecord) error
}

// Hooks observe persistence and step changes in the order they happen.
type Hooks struct {
	OnPersist func(key string)
	OnStep    func(from, to models.StepIndex)
}

// Config holds the external routes the wizard hands off to.
type Config struct {
	PackageSelectionURL string
	DashboardURL        string
	AmazonConnectURL    string
	ReferenceTimeout    time.Duration
}

// Deps are the collaborators of a Controller.
type Deps struct {
	Store  *formstore.Store
	Ops    backend.Operations
	Sink   CompletionSink
	Hooks  Hooks
	Config Config
	Logger *zap.Logger
}

// Controller owns the state of one wizard instance, from mount to dashboard exit.
// All methods are safe for concurrent use; remote calls run without holding the lock.
type Controller struct {
	mu     sync.Mutex
	store  *formstore.Store
	ops    backend.Operations
	sink   CompletionSink
	hooks  Hooks
	cfg    Config
	logger *zap.Logger

	mounted               bool
	finished              bool
	step                  models.StepIndex
	form                  models.WizardFormState
	touched               map[string]bool
	errors                FieldErrors
	loading               map[models.StepIndex]bool
	query                 url.Values
	needsPackageSelection bool
	amazonConnected       *bool

	identity          *models.UserIdentity
	verificationToken string
	accessToken       string
	selectedPlanID    string
	referralCode      string

	dataFetched   bool
	referenceDone chan struct{}
	reference     models.ReferenceData
}

// NewController creates an unmounted controller.
func NewController(d Deps) *Controller {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Config.ReferenceTimeout <= 0 {
		d.Config.ReferenceTimeout = 15 * time.Second
	}
	return &Controller{
		store:   d.Store,
		ops:     d.Ops,
		sink:    d.Sink,
		hooks:   d.Hooks,
		cfg:     d.Config,
		logger:  logger.With(zap.String("sessionID", d.Store.SessionID())),
		form:    models.WizardFormState{CategoryIDs: []string{}},
		touched: map[string]bool{},
		errors:  FieldErrors{},
		loading: map[models.StepIndex]bool{},
		query:   url.Values{},
	}
}

// Mount applies a page load. The first mount repopulates state from the snapshot;
// later mounts behave like a reload of the same instance with a new URL.
func (c *Controller) Mount(ctx context.Context, p MountParams) View {
	c.mu.Lock()
	defer c.mu.Unlock()

	first := !c.mounted
	if first {
		snap := c.store.LoadSnapshot(ctx)
		c.form = snap.FormData
		c.identity = snap.UserIdentity
		c.verificationToken = snap.VerificationToken
		c.selectedPlanID = snap.SelectedPlanID
		c.referralCode = snap.ReferralCode
	}

	if p.Ref != "" && p.Ref != c.referralCode {
		c.referralCode = p.Ref
		c.persist(ctx, formstore.KeyReferralCode, c.referralCode)
	}
	if p.Pricing != "" && p.Pricing != c.selectedPlanID {
		c.selectedPlanID = p.Pricing
		c.persist(ctx, formstore.KeySelectedPlanID, c.selectedPlanID)
	}
	if first {
		c.needsPackageSelection = p.Pricing == "" && c.selectedPlanID == ""
	}
	if p.Token != "" && p.Token != c.verificationToken {
		c.verificationToken = p.Token
		c.persist(ctx, formstore.KeyVerificationToken, c.verificationToken)
	}

	formChanged := false
	if p.Email != "" && p.Email != c.form.Email {
		c.form.Email = p.Email
		formChanged = true
	}
	if p.FullName != "" && p.FullName != c.form.FullName {
		c.form.FullName = p.FullName
		formChanged = true
	}
	if formChanged {
		c.persistForm(ctx)
	}

	c.query = mountQuery(p)
	if step, ok := parseStep(p.Step); ok {
		c.setStep(step)
	}
	c.query.Set("step", strconv.Itoa(int(c.step)))

	notice := c.applyAmazonParams(p)
	c.mounted = true
	c.maybeFetchReference()
	return c.viewLocked(notice, nil)
}

// parseStep accepts only integers inside the wizard's range. Anything else is ignored
// so a stale or crafted link cannot jump to a later step.
func parseStep(raw string) (models.StepIndex, bool) {
	if raw == "" {
		return 0, false
	}
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, false
	}
	step := models.StepIndex(n)
	return step, step.Valid()
}

// mountQuery keeps the page parameters except the one-shot Amazon callback flags.
func mountQuery(p MountParams) url.Values {
	q := url.Values{}
	set := func(k, v string) {
		if v != "" {
			q.Set(k, v)
		}
	}
	set("ref", p.Ref)
	set("pricing", p.Pricing)
	set("email", p.Email)
	set("fullname", p.FullName)
	set("token", p.Token)
	return q
}

func (c *Controller) applyAmazonParams(p MountParams) *Notice {
	var notice *Notice
	switch p.AmazonConnected {
	case "true":
		connected := true
		c.amazonConnected = &connected
		notice = &Notice{Level: "success", Message: "Your Amazon account is connected."}
	case "false":
		connected := false
		c.amazonConnected = &connected
		notice = &Notice{Level: "error", Message: "Your Amazon account was not connected."}
	}
	if p.AmazonError == "true" {
		notice = &Notice{Level: "error", Message: "We couldn't connect your Amazon account. Please try again."}
	}
	return notice
}

// Update merges user input into the form. Input after the dashboard exit is refused
// so the cleared snapshot stays cleared.
func (c *Controller) Update(ctx context.Context, patch FormPatch) (View, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.finished {
		return View{}, ErrFinished
	}

	applyString := func(dst *string, src *string) {
		if src != nil {
			*dst = *src
		}
	}
	applyString(&c.form.FullName, patch.FullName)
	applyString(&c.form.Email, patch.Email)
	applyString(&c.form.Password, patch.Password)
	applyString(&c.form.ConfirmPassword, patch.ConfirmPassword)
	applyString(&c.form.ExperienceLevelID, patch.ExperienceLevelID)
	applyString(&c.form.CountryID, patch.CountryID)
	if patch.CategoryIDs != nil {
		c.form.CategoryIDs = uniqueIDs(*patch.CategoryIDs)
	}
	for _, f := range patch.Touch {
		c.touched[f] = true
	}

	if len(c.errors) > 0 {
		if d, ok := Resolve(c.step); ok {
			c.errors = d.Gate.Validate(c.form)
		}
	}
	if c.form.HasValues() {
		c.persistForm(ctx)
	}
	return c.viewLocked(nil, nil), nil
}

func uniqueIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// Next runs the current step's gate and operation. Validation and remote failures are
// reported in the returned view; the error is non-nil only when the action was refused.
func (c *Controller) Next(ctx context.Context) (View, error) {
	c.mu.Lock()
	if c.finished {
		c.mu.Unlock()
		return View{}, ErrFinished
	}
	step := c.step
	if c.loading[step] {
		v := c.viewLocked(nil, nil)
		c.mu.Unlock()
		return v, ErrStepBusy
	}
	d, _ := Resolve(step)

	if errs := d.Gate.Validate(c.form); len(errs) > 0 {
		for _, f := range d.Fields {
			c.touched[f] = true
		}
		c.errors = errs
		v := c.viewLocked(nil, nil)
		c.mu.Unlock()
		return v, nil
	}
	c.errors = FieldErrors{}

	switch d.Operation {
	case OpCheckout:
		return c.checkout(ctx, step)
	case OpActivateAccount:
		return c.activate(ctx, step)
	case OpUpdateProfile:
		return c.updateProfile(ctx, step)
	case OpExitToDashboard:
		return c.exit(ctx)
	default:
		c.advance(step)
		v := c.viewLocked(nil, nil)
		c.mu.Unlock()
		return v, nil
	}
}

// checkout is entered with c.mu held and releases it.
func (c *Controller) checkout(ctx context.Context, step models.StepIndex) (View, error) {
	if c.needsPackageSelection || c.selectedPlanID == "" {
		nav := &Navigation{Kind: NavPackageSelection, URL: c.packageSelectionURL(), Target: "_top"}
		v := c.viewLocked(nil, nav)
		c.mu.Unlock()
		return v, nil
	}
	if errs := ValidateFullName(c.form.FullName); len(errs) > 0 {
		v := c.viewLocked(&Notice{Level: "error", Message: "Please enter your full name before continuing."}, nil)
		c.mu.Unlock()
		return v, nil
	}

	req := backend.CheckoutRequest{
		PricingID:    c.selectedPlanID,
		Email:        strings.TrimSpace(c.form.Email),
		FullName:     strings.TrimSpace(c.form.FullName),
		ReferralCode: c.referralCode,
	}
	c.loading[step] = true
	c.mu.Unlock()

	resp, err := c.ops.Checkout.CreateCheckoutSession(context.WithoutCancel(ctx), req)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, step)
	if err != nil {
		c.logger.Warn("wizard: checkout session failed", zap.Error(err))
		return c.viewLocked(failureNotice(err), nil), nil
	}
	return c.viewLocked(nil, &Navigation{Kind: NavCheckout, URL: resp.URL, Target: "_top"}), nil
}

func (c *Controller) packageSelectionURL() string {
	u, err := url.Parse(c.cfg.PackageSelectionURL)
	if err != nil {
		return c.cfg.PackageSelectionURL
	}
	q := u.Query()
	if c.form.Email != "" {
		q.Set("email", strings.TrimSpace(c.form.Email))
	}
	if c.form.FullName != "" {
		q.Set("fullname", strings.TrimSpace(c.form.FullName))
	}
	if c.referralCode != "" {
		q.Set("ref", c.referralCode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// activate is entered with c.mu held and releases it.
func (c *Controller) activate(ctx context.Context, step models.StepIndex) (View, error) {
	if c.verificationToken == "" {
		c.advance(step)
		v := c.viewLocked(nil, nil)
		c.mu.Unlock()
		return v, nil
	}

	token := c.verificationToken
	req := backend.SetPasswordRequest{
		Email:                strings.TrimSpace(c.form.Email),
		Password:             c.form.Password,
		PasswordConfirmation: c.form.ConfirmPassword,
	}
	c.loading[step] = true
	c.mu.Unlock()

	resp, err := c.ops.Accounts.SetPassword(context.WithoutCancel(ctx), token, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, step)
	if err != nil {
		c.logger.Warn("wizard: account activation failed", zap.Error(err))
		return c.viewLocked(failureNotice(err), nil), nil
	}
	if c.finished {
		return c.viewLocked(nil, nil), nil
	}

	c.identity = &models.UserIdentity{
		FirstName:        resp.User.FirstName,
		LastName:         resp.User.LastName,
		Email:            resp.User.Email,
		SubscriptionType: resp.User.SubscriptionType,
	}
	c.accessToken = resp.AccessToken
	// The snapshot must hold the identity before the step moves on.
	c.persist(ctx, formstore.KeyUserIdentity, c.identity)
	c.advance(step)
	return c.viewLocked(nil, nil), nil
}

// updateProfile is entered with c.mu held and releases it.
func (c *Controller) updateProfile(ctx context.Context, step models.StepIndex) (View, error) {
	req, err := profileRequest(c.form)
	if err != nil {
		v := c.viewLocked(&Notice{Level: "error", Message: "One of your selections is invalid. Please choose again."}, nil)
		c.mu.Unlock()
		return v, nil
	}
	token := c.accessToken
	if token == "" {
		token = c.verificationToken
	}
	c.loading[step] = true
	c.mu.Unlock()

	err = c.ops.Profile.UpdateProfile(context.WithoutCancel(ctx), token, req)

	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.loading, step)
	if err != nil {
		c.logger.Warn("wizard: profile update failed", zap.Error(err))
		return c.viewLocked(failureNotice(err), nil), nil
	}
	c.advance(step)
	return c.viewLocked(nil, nil), nil
}

// profileRequest converts the selected ids to the numeric ids the backend expects.
// An empty single-select is sent as 0.
func profileRequest(form models.WizardFormState) (backend.ProfileUpdateRequest, error) {
	atoi := func(s string) (int, error) {
		if s == "" {
			return 0, nil
		}
		return strconv.Atoi(s)
	}
	req := backend.ProfileUpdateRequest{CategoryIDs: make([]int, 0, len(form.CategoryIDs))}
	for _, id := range form.CategoryIDs {
		n, err := strconv.Atoi(id)
		if err != nil {
			return req, err
		}
		req.CategoryIDs = append(req.CategoryIDs, n)
	}
	var err error
	if req.ExperienceLevelID, err = atoi(form.ExperienceLevelID); err != nil {
		return req, err
	}
	if req.CountryID, err = atoi(form.CountryID); err != nil {
		return req, err
	}
	return req, nil
}

// exit is entered with c.mu held and releases it.
func (c *Controller) exit(ctx context.Context) (View, error) {
	defer c.mu.Unlock()

	record := c.completionRecord()
	c.store.ClearAll(ctx)
	c.finished = true

	if c.sink != nil {
		if err := c.sink.Completed(context.WithoutCancel(ctx), record); err != nil {
			c.logger.Error("wizard: failed to record completion", zap.Error(err))
		}
	}
	c.logger.Info("wizard: onboarding finished", zap.String("email", record.Email))
	return c.viewLocked(nil, &Navigation{Kind: NavDashboard, URL: c.cfg.DashboardURL, Target: "_top"}), nil
}

func (c *Controller) completionRecord() models.OnboardingRecord {
	r := models.OnboardingRecord{
		ID:                uuid.New().String(),
		SessionID:         c.store.SessionID(),
		FullName:          strings.TrimSpace(c.form.FullName),
		Email:             strings.TrimSpace(c.form.Email),
		SelectedPlanID:    c.selectedPlanID,
		ReferralCode:      c.referralCode,
		ExperienceLevelID: c.form.ExperienceLevelID,
		CategoryIDs:       append([]string(nil), c.form.CategoryIDs...),
		CountryID:         c.form.CountryID,
		AmazonConnected:   c.amazonConnected != nil && *c.amazonConnected,
		CompletedAt:       time.Now().UTC(),
	}
	if c.identity != nil {
		r.SubscriptionType = c.identity.SubscriptionType
		if c.identity.Email != "" {
			r.Email = c.identity.Email
		}
	}
	return r
}

// Clear drops the snapshot and resets the instance to a fresh, unmounted wizard.
// Reference data already fetched is kept.
func (c *Controller) Clear(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.store.ClearAll(ctx)
	c.mounted = false
	c.step = 0
	c.form = models.WizardFormState{CategoryIDs: []string{}}
	c.touched = map[string]bool{}
	c.errors = FieldErrors{}
	c.query = url.Values{}
	c.identity = nil
	c.verificationToken = ""
	c.accessToken = ""
	c.selectedPlanID = ""
	c.referralCode = ""
	c.amazonConnected = nil
}

// View returns the current view.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(nil, nil)
}

// Finished reports whether the user has left the wizard for the dashboard.
func (c *Controller) Finished() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.finished
}

// Step returns the current step index.
func (c *Controller) Step() models.StepIndex {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.step
}

// advance moves past from. It is a no-op when the step changed while a call was in flight.
func (c *Controller) advance(from models.StepIndex) {
	if c.step != from || from >= models.MaxStep {
		return
	}
	c.setStep(from + 1)
	c.maybeFetchReference()
}

func (c *Controller) setStep(to models.StepIndex) {
	from := c.step
	c.step = to
	c.query.Set("step", strconv.Itoa(int(to)))
	if from != to {
		c.errors = FieldErrors{}
	}
	if c.hooks.OnStep != nil {
		c.hooks.OnStep(from, to)
	}
}

func (c *Controller) persistForm(ctx context.Context) {
	c.persist(ctx, formstore.KeyFormData, c.form.Redacted())
}

func (c *Controller) persist(ctx context.Context, key string, value interface{}) {
	c.store.Save(ctx, key, value)
	if c.hooks.OnPersist != nil {
		c.hooks.OnPersist(key)
	}
}

func failureNotice(err error) *Notice {
	return &Notice{Level: "error", Message: backend.UserMessage(err, genericFailure)}
}

func (c *Controller) viewLocked(notice *Notice, nav *Navigation) View {
	d, _ := Resolve(c.step)
	v := View{
		Step:                  c.step,
		Descriptor:            d,
		Form:                  c.form.Redacted(),
		Errors:                c.errors.Visible(c.touched),
		Loading:               c.loading[c.step],
		Location:              "?" + c.query.Encode(),
		NeedsPackageSelection: c.needsPackageSelection,
		AmazonConnected:       c.amazonConnected,
		Notice:                notice,
		Navigation:            nav,
		Finished:              c.finished,
	}
	if c.identity != nil {
		identity := *c.identity
		v.UserIdentity = &identity
	}
	if c.step == 6 && c.cfg.AmazonConnectURL != "" {
		v.AmazonConnectURL = c.cfg.AmazonConnectURL
	}
	if c.referenceReady() {
		ref := c.reference
		v.Reference = &ref
	}
	return v
}
