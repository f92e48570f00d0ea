// Package session keeps per-user conversation state in memory. A user has at
// most one active session at a time: starting a registration drops any order
// entry in progress and vice versa.
package session

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/parnamyadak/partsbot/internal/domain"
)

// RegistrationStep identifies the field currently being collected.
type RegistrationStep string

const (
	StepFullName   RegistrationStep = "full_name"
	StepMobile     RegistrationStep = "mobile"
	StepCardNumber RegistrationStep = "card_number"
	StepSheba      RegistrationStep = "sheba_number"
	StepAddress    RegistrationStep = "address"
	StepLicense    RegistrationStep = "business_license"

	StepFirstName  RegistrationStep = "first_name"
	StepPhone      RegistrationStep = "phone_number"
	StepProvince   RegistrationStep = "province"
	StepCity       RegistrationStep = "city"
	StepPostalCode RegistrationStep = "postal_code"

	StepDone RegistrationStep = "done"
)

var mechanicSteps = []RegistrationStep{
	StepFullName, StepMobile, StepCardNumber, StepSheba, StepAddress, StepLicense,
}

var customerSteps = []RegistrationStep{
	StepFirstName, StepPhone, StepProvince, StepCity, StepPostalCode, StepAddress,
}

// fieldLabels maps steps to the Persian field names used in validation reports.
var fieldLabels = map[RegistrationStep]string{
	StepFullName:   "نام و نام خانوادگی",
	StepMobile:     "شماره موبایل",
	StepCardNumber: "شماره کارت",
	StepSheba:      "شماره شبا",
	StepAddress:    "آدرس",
	StepLicense:    "تصویر جواز کسب",
	StepFirstName:  "نام",
	StepPhone:      "شماره تلفن",
	StepProvince:   "استان",
	StepCity:       "شهر",
	StepPostalCode: "کد پستی",
}

// Registration is an in-progress sign-up conversation.
type Registration struct {
	Role   domain.Role
	Step   RegistrationStep
	Fields map[RegistrationStep]string
	// LicenseFileID is the Telegram file id of the mechanic's license photo.
	LicenseFileID string
}

func newRegistration(role domain.Role) *Registration {
	r := &Registration{
		Role:   role,
		Fields: make(map[RegistrationStep]string),
	}
	r.Step = r.steps()[0]
	return r
}

func (r *Registration) steps() []RegistrationStep {
	if r.Role == domain.RoleMechanic {
		return mechanicSteps
	}
	return customerSteps
}

// Apply records trimmed text for the current step and advances. Empty text
// is rejected and the step does not move.
func (r *Registration) Apply(text string) error {
	if r.Step == StepDone {
		return fmt.Errorf("registration already complete")
	}
	if r.Step == StepLicense {
		return fmt.Errorf("current step expects a photo")
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return fmt.Errorf("empty value for %s", r.Step)
	}
	r.Fields[r.Step] = trimmed
	r.advance()
	return nil
}

// SetLicense records the license photo file id and advances. Only valid on
// the license step.
func (r *Registration) SetLicense(fileID string) error {
	if r.Step != StepLicense {
		return fmt.Errorf("not on license step")
	}
	if strings.TrimSpace(fileID) == "" {
		return fmt.Errorf("empty license file id")
	}
	r.LicenseFileID = fileID
	r.advance()
	return nil
}

func (r *Registration) advance() {
	steps := r.steps()
	for i, s := range steps {
		if s == r.Step {
			if i+1 < len(steps) {
				r.Step = steps[i+1]
			} else {
				r.Step = StepDone
			}
			return
		}
	}
}

// Complete reports whether all steps have been collected.
func (r *Registration) Complete() bool {
	return r.Step == StepDone && len(r.Missing()) == 0
}

// Missing returns Persian labels of steps still lacking a value.
func (r *Registration) Missing() []string {
	var out []string
	for _, step := range r.steps() {
		if step == StepLicense {
			if r.LicenseFileID == "" {
				out = append(out, fieldLabels[step])
			}
			continue
		}
		if strings.TrimSpace(r.Fields[step]) == "" {
			out = append(out, fieldLabels[step])
		}
	}
	return out
}

// Field returns the collected value for a step.
func (r *Registration) Field(step RegistrationStep) string {
	return r.Fields[step]
}

// OrderStep identifies where the order conversation stands.
type OrderStep string

const (
	OrderStepProduct     OrderStep = "product_name"
	OrderStepQuantity    OrderStep = "quantity"
	OrderStepPhotoChoice OrderStep = "photo_choice"
	OrderStepAwaitPhoto  OrderStep = "waiting_photo"
	OrderStepReview      OrderStep = "review"
)

// ErrBadQuantity is returned for quantities that are not positive integers.
var ErrBadQuantity = fmt.Errorf("quantity must be a positive integer")

// ErrNotNumber is returned for quantity input that does not parse at all.
var ErrNotNumber = fmt.Errorf("quantity is not a number")

// OrderSession is an in-progress multi-item order entry.
type OrderSession struct {
	Role    domain.Role
	Step    OrderStep
	Items   []domain.Item
	Current domain.Item
}

func newOrderSession(role domain.Role) *OrderSession {
	return &OrderSession{Role: role, Step: OrderStepProduct}
}

// SetProduct records the product name for the current item.
func (o *OrderSession) SetProduct(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("empty product name")
	}
	o.Current.ProductName = trimmed
	o.Step = OrderStepQuantity
	return nil
}

// SetQuantity parses and records the quantity for the current item.
func (o *OrderSession) SetQuantity(text string) error {
	n, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		return ErrNotNumber
	}
	if n <= 0 {
		return ErrBadQuantity
	}
	o.Current.Quantity = n
	o.Step = OrderStepPhotoChoice
	return nil
}

// ChoosePhoto records whether the user will attach a photo to this item.
func (o *OrderSession) ChoosePhoto(want bool) {
	if want {
		o.Step = OrderStepAwaitPhoto
		return
	}
	o.Step = OrderStepReview
}

// AttachPhoto records the photo file id for the current item.
func (o *OrderSession) AttachPhoto(fileID string) error {
	if o.Step != OrderStepAwaitPhoto {
		return fmt.Errorf("not waiting for a photo")
	}
	o.Current.PhotoFileID = fileID
	o.Step = OrderStepReview
	return nil
}

// FlushCurrent appends the current item when it is complete and resets it.
// Partial items are dropped silently.
func (o *OrderSession) FlushCurrent() bool {
	flushed := false
	if o.Current.Complete() {
		o.Items = append(o.Items, o.Current)
		flushed = true
	}
	o.Current = domain.Item{}
	return flushed
}

// NextItem flushes the current item and restarts collection for a new one.
func (o *OrderSession) NextItem() bool {
	flushed := o.FlushCurrent()
	o.Step = OrderStepProduct
	return flushed
}

// Manager tracks active conversations. Order sessions live in separate
// per-role maps; registration sessions share one map.
type Manager struct {
	mu             sync.RWMutex
	registrations  map[int64]*Registration
	mechanicOrders map[int64]*OrderSession
	customerOrders map[int64]*OrderSession
}

// NewManager builds an empty session manager.
func NewManager() *Manager {
	return &Manager{
		registrations:  make(map[int64]*Registration),
		mechanicOrders: make(map[int64]*OrderSession),
		customerOrders: make(map[int64]*OrderSession),
	}
}

// StartRegistration opens a registration session, ending any other session.
func (m *Manager) StartRegistration(userID int64, role domain.Role) *Registration {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(userID)
	r := newRegistration(role)
	m.registrations[userID] = r
	return r
}

// Registration returns the active registration session, if any.
func (m *Manager) Registration(userID int64) (*Registration, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.registrations[userID]
	return r, ok
}

// StartOrder opens an order session, ending any other session.
func (m *Manager) StartOrder(userID int64, role domain.Role) *OrderSession {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(userID)
	o := newOrderSession(role)
	if role == domain.RoleMechanic {
		m.mechanicOrders[userID] = o
	} else {
		m.customerOrders[userID] = o
	}
	return o
}

// Order returns the active order session for a user from either role map.
func (m *Manager) Order(userID int64) (*OrderSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if o, ok := m.mechanicOrders[userID]; ok {
		return o, true
	}
	if o, ok := m.customerOrders[userID]; ok {
		return o, true
	}
	return nil, false
}

// Active reports whether the user has any session open.
func (m *Manager) Active(userID int64) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.registrations[userID]; ok {
		return true
	}
	if _, ok := m.mechanicOrders[userID]; ok {
		return true
	}
	_, ok := m.customerOrders[userID]
	return ok
}

// Clear ends every session the user has open.
func (m *Manager) Clear(userID int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearLocked(userID)
}

func (m *Manager) clearLocked(userID int64) {
	delete(m.registrations, userID)
	delete(m.mechanicOrders, userID)
	delete(m.customerOrders, userID)
}
