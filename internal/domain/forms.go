package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidForm marks a submission rejected before it reaches the backend.
var ErrInvalidForm = errors.New("invalid form")

// FlexFloat is an optional number as browsers send it: a JSON number, a
// numeric string, an empty string or null.
type FlexFloat struct {
	Value float64
	Valid bool
}

// Float wraps v as a set FlexFloat.
func Float(v float64) FlexFloat {
	return FlexFloat{Value: v, Valid: true}
}

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if string(data) == "null" {
		*f = FlexFloat{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*f = FlexFloat{}
			return nil
		}
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return fmt.Errorf("parse number %q: %w", s, err)
		}
		*f = Float(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*f = Float(v)
	return nil
}

// MarshalJSON writes unset values as an empty string, matching what an
// untouched form field posts.
func (f FlexFloat) MarshalJSON() ([]byte, error) {
	if !f.Valid {
		return []byte(`""`), nil
	}
	return json.Marshal(f.Value)
}

// String formats the value for string-typed payload fields, "0" when unset or zero.
func (f FlexFloat) String() string {
	if !f.Valid || f.Value == 0 {
		return "0"
	}
	return strconv.FormatFloat(f.Value, 'f', -1, 64)
}

// GeoSource records how form coordinates or addresses were obtained.
const (
	GeoSourceForward  = "forward"
	GeoSourceReverse  = "reverse"
	GeoSourceOriginal = "original"
	GeoSourceFailed   = "failed"
)

// VolunteerForm is the volunteer registration form.
type VolunteerForm struct {
	FullName                     string    `json:"fullName"`
	Email                        string    `json:"email"`
	PhoneNumber                  string    `json:"phoneNumber"`
	CurrentLocation              string    `json:"currentLocation"`
	PrimarySkill                 string    `json:"primarySkill"`
	SelectedSkills               []string  `json:"selectedSkills"`
	Availability                 string    `json:"availability"`
	YearsOfExperience            string    `json:"yearsOfExperience"`
	Weekends                     bool      `json:"weekends"`
	Nights                       bool      `json:"nights"`
	BriefExperience              bool      `json:"briefExperience"`
	HealthLimitations            bool      `json:"healthLimitations"`
	EmergencyContactName         string    `json:"emergencyContactName"`
	EmergencyContactRelationship string    `json:"emergencyContactRelationship"`
	Latitude                     FlexFloat `json:"latitude"`
	Longitude                    FlexFloat `json:"longitude"`
}

// VolunteerSkills are the skill toggles offered by the form.
var VolunteerSkills = []string{"Medical", "Search & Rescue", "Logistics", "Communication"}

// NewVolunteerForm returns the form's initial state.
func NewVolunteerForm() VolunteerForm {
	return VolunteerForm{SelectedSkills: []string{}}
}

// ToggleSkill adds the skill if absent and removes it otherwise.
func (f *VolunteerForm) ToggleSkill(skill string) {
	for i, s := range f.SelectedSkills {
		if s == skill {
			f.SelectedSkills = append(f.SelectedSkills[:i:i], f.SelectedSkills[i+1:]...)
			return
		}
	}
	f.SelectedSkills = append(f.SelectedSkills, skill)
}

// Validate checks the fields a volunteer cannot be contacted without.
func (f VolunteerForm) Validate() error {
	if strings.TrimSpace(f.FullName) == "" {
		return fmt.Errorf("%w: full name is required", ErrInvalidForm)
	}
	if strings.TrimSpace(f.Email) == "" && strings.TrimSpace(f.PhoneNumber) == "" {
		return fmt.Errorf("%w: an email or phone number is required", ErrInvalidForm)
	}
	return nil
}

// VolunteerPayload is the body posted to /volunteer: the form plus lat/lng
// copied from latitude/longitude.
type VolunteerPayload struct {
	VolunteerForm
	Lat FlexFloat `json:"lat"`
	Lng FlexFloat `json:"lng"`
}

// Payload shapes the form for the backend.
func (f VolunteerForm) Payload() VolunteerPayload {
	if f.SelectedSkills == nil {
		f.SelectedSkills = []string{}
	}
	return VolunteerPayload{VolunteerForm: f, Lat: f.Latitude, Lng: f.Longitude}
}

// DonationForm is the donation form.
type DonationForm struct {
	Amount              FlexFloat `json:"amount"`
	CustomAmount        string    `json:"customAmount"`
	DonationType        string    `json:"donationType"`
	MonthlyRecurring    bool      `json:"monthlyRecurring"`
	FullName            string    `json:"fullName"`
	Email               string    `json:"email"`
	Phone               string    `json:"phone"`
	SelectedDisaster    string    `json:"selectedDisaster"`
	SpecificNeeds       bool      `json:"specificNeeds"`
	FundType            string    `json:"fundType"`
	DonorEmail          string    `json:"donorEmail"`
	ExpirationFund      string    `json:"expirationFund"`
	Category            string    `json:"category"`
	PaymentMethod       string    `json:"paymentMethod"`
	SameAsPersonal      bool      `json:"sameAsPersonal"`
	CVV                 string    `json:"cvv"`
	BillingAddress      string    `json:"billingAddress"`
	ReceiveUpdates      bool      `json:"receiveUpdates"`
	DonateAnonymously   bool      `json:"donateAnonymously"`
	DedicateAnonymously bool      `json:"dedicateAnonymously"`
	ReasonForDonation   string    `json:"reasonForDonation"`
	AllocationType      string    `json:"allocationType"`
}

// DonationAmounts are the preset amount buttons.
var DonationAmounts = []float64{25, 50, 100, 250}

// NewDonationForm returns the form's initial state.
func NewDonationForm() DonationForm {
	return DonationForm{
		Amount:            Float(50),
		DonationType:      "one-time",
		SelectedDisaster:  "wildfire",
		FundType:          "general",
		Category:          "food",
		PaymentMethod:     "mastercard",
		ReceiveUpdates:    true,
		ReasonForDonation: "general",
		AllocationType:    "general",
	}
}

// EffectiveAmount is the preset amount, or the custom amount when no preset
// is selected. The second result is false when neither parses to a positive value.
func (f DonationForm) EffectiveAmount() (float64, bool) {
	if f.Amount.Valid && f.Amount.Value > 0 {
		return f.Amount.Value, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(f.CustomAmount), 64)
	if err != nil || v <= 0 {
		return 0, false
	}
	return v, true
}

// Validate requires a positive amount.
func (f DonationForm) Validate() error {
	if _, ok := f.EffectiveAmount(); !ok {
		return fmt.Errorf("%w: donation amount must be positive", ErrInvalidForm)
	}
	return nil
}

// Priority levels offered by the help request form.
const (
	PriorityCritical  = "critical"
	PriorityUrgent    = "urgent"
	PriorityImportant = "important"
)

// SpecificNeeds are the help request need toggles.
type SpecificNeeds struct {
	Medical    bool `json:"medical"`
	Water      bool `json:"water"`
	Food       bool `json:"food"`
	Shelter    bool `json:"shelter"`
	Rescue     bool `json:"rescue"`
	Evacuation bool `json:"evacuation"`
}

// HelpRequestDetails holds every help request field except coordinates.
type HelpRequestDetails struct {
	PriorityLevel        string        `json:"priorityLevel"`
	DangerType           string        `json:"dangerType"`
	PeopleAffected       bool          `json:"peopleAffected"`
	LocationAddress      string        `json:"locationAddress"`
	NearbyLandmark       string        `json:"nearbyLandmark"`
	LandmarkDescription  string        `json:"landmarkDescription"`
	Floor                string        `json:"floor"`
	SituationDescription string        `json:"situationDescription"`
	SpecificNeeds        SpecificNeeds `json:"specificNeeds"`
	MedicalEmergency     bool          `json:"medicalEmergency"`
	Injuries             bool          `json:"injuries"`
	Roofing              bool          `json:"roofing"`
	StructuralDamage     bool          `json:"structuralDamage"`
	Fire                 bool          `json:"fire"`
	Blankets             bool          `json:"blankets"`
	FoodSupplies         bool          `json:"foodSupplies"`
	WaterBottles         bool          `json:"waterBottles"`
	Name                 string        `json:"name"`
	Phone                string        `json:"phone"`
	AlternativeContact   string        `json:"alternativeContact"`
	BestTimeToContact    string        `json:"bestTimeToContact"`
	SpecialNeeds         string        `json:"specialNeeds"`
	NumberOfPeople       int           `json:"numberOfPeople"`
	PhotoURL             string        `json:"photoUrl"`
	VideoURL             string        `json:"videoUrl"`
}

// HelpRequestForm is the emergency help request form.
type HelpRequestForm struct {
	HelpRequestDetails
	Latitude  FlexFloat `json:"latitude"`
	Longitude FlexFloat `json:"longitude"`
}

// NewHelpRequestForm returns the form's initial state.
func NewHelpRequestForm() HelpRequestForm {
	return HelpRequestForm{HelpRequestDetails: HelpRequestDetails{
		PriorityLevel:     PriorityUrgent,
		DangerType:        "immediate",
		BestTimeToContact: "anytime",
	}}
}

// Validate checks the priority level and head count.
func (f HelpRequestForm) Validate() error {
	switch f.PriorityLevel {
	case PriorityCritical, PriorityUrgent, PriorityImportant:
	default:
		return fmt.Errorf("%w: unknown priority level %q", ErrInvalidForm, f.PriorityLevel)
	}
	if f.NumberOfPeople < 0 {
		return fmt.Errorf("%w: number of people cannot be negative", ErrInvalidForm)
	}
	return nil
}

// HelpRequestPayload is the body posted to submitHelpRequest: latitude and
// longitude are replaced by string lat/lng.
type HelpRequestPayload struct {
	HelpRequestDetails
	Lat string `json:"lat"`
	Lng string `json:"lng"`
}

// Payload shapes the form for the backend. Missing or zero coordinates are sent as "0".
func (f HelpRequestForm) Payload() HelpRequestPayload {
	return HelpRequestPayload{
		HelpRequestDetails: f.HelpRequestDetails,
		Lat:                f.Latitude.String(),
		Lng:                f.Longitude.String(),
	}
}

// UploadKind is the attachment slot a help request file fills.
type UploadKind string

const (
	UploadPhoto UploadKind = "photo"
	UploadVideo UploadKind = "video"
)

// ParseUploadKind validates an attachment slot name.
func ParseUploadKind(s string) (UploadKind, error) {
	switch UploadKind(strings.ToLower(strings.TrimSpace(s))) {
	case UploadPhoto:
		return UploadPhoto, nil
	case UploadVideo:
		return UploadVideo, nil
	default:
		return "", fmt.Errorf("%w: unknown upload kind %q", ErrInvalidForm, s)
	}
}

// MediaPrefix is the MIME top-level type accepted for the slot.
func (k UploadKind) MediaPrefix() string {
	if k == UploadVideo {
		return "video/"
	}
	return "image/"
}

// Attach records an uploaded file URL in the matching slot.
func (f *HelpRequestForm) Attach(kind UploadKind, fileURL string) {
	if kind == UploadVideo {
		f.VideoURL = fileURL
		return
	}
	f.PhotoURL = fileURL
}
