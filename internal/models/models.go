package models

import "time"

type RequestStatus string

const (
	StatusOpen    RequestStatus = "OPEN"
	StatusMatched RequestStatus = "MATCHED"
)

type TaxiStatus string

const (
	TaxiAvailable TaxiStatus = "available"
	TaxiConnected TaxiStatus = "connected"
)

type CredentialStatus string

const (
	CredentialsPending  CredentialStatus = "pending"
	CredentialsApproved CredentialStatus = "approved"
	CredentialsRejected CredentialStatus = "rejected"
)

// Area is one of the six fixed cities used for bucketing requests.
type Area string

const (
	Auckland     Area = "Auckland"
	Wellington   Area = "Wellington"
	Christchurch Area = "Christchurch"
	Hamilton     Area = "Hamilton"
	Tauranga     Area = "Tauranga"
	Dunedin      Area = "Dunedin"
)

// AllAreas lists the areas in their fixed, hardcoded order.
var AllAreas = []Area{Auckland, Wellington, Christchurch, Hamilton, Tauranga, Dunedin}

type ServiceRequest struct {
	ID          string        `json:"id"`
	Category    string        `json:"category"`
	Description string        `json:"description"`
	Suburb      string        `json:"suburb"`
	Status      RequestStatus `json:"status"`
	CreatedAt   time.Time     `json:"createdAt"`
}

type Provider struct {
	ID            string    `json:"id"`
	WalletCredits int       `json:"walletCredits"`
	CreatedAt     time.Time `json:"createdAt"`
}

type Place struct {
	Text string `json:"text"`
}

type TaxiRequest struct {
	ID           string     `json:"id"`
	Status       TaxiStatus `json:"status"`
	CreatedAt    time.Time  `json:"createdAt"`
	Area         Area       `json:"area"`
	Pickup       Place      `json:"pickup"`
	Destination  Place      `json:"destination"`
	Notes        string     `json:"notes,omitempty"`
	FareEstimate *float64   `json:"fareEstimate,omitempty"`
}

type Endorsement struct {
	Has    bool   `json:"has"`
	DocURL string `json:"docUrl,omitempty"`
}

type TaxiCredentials struct {
	ID                   string           `json:"id"`
	DriverName           string           `json:"driverName"`
	LicenceNumber        string           `json:"licenceNumber"`
	PEndorsement         Endorsement      `json:"pEndorsement"`
	PSLNumberOrLabel     string           `json:"pslNumberOrLabel"`
	COFExpiry            string           `json:"cofExpiry"`
	MedicalProvided      bool             `json:"medicalProvided"`
	RightToWorkConfirmed bool             `json:"rightToWorkConfirmed"`
	Status               CredentialStatus `json:"status"`
	SubmittedAt          time.Time        `json:"submittedAt"`
}

type ActivityType string

const (
	ActivityRequestPosted     ActivityType = "request_posted"
	ActivityConnected         ActivityType = "connected"
	ActivityTopUp             ActivityType = "topup"
	ActivityTaxiRequestPosted ActivityType = "taxi_request_posted"
	ActivityTaxiConnected     ActivityType = "taxi_connected"
	ActivityTaxiCredentials   ActivityType = "taxi_credentials_submitted"
	ActivityTesterReport      ActivityType = "tester_report"
	ActivityTesterReset       ActivityType = "tester_reset"
)

// ActivityLogEntry carries a type plus whichever optional fields that type uses.
type ActivityLogEntry struct {
	Type        ActivityType `json:"type"`
	Category    string       `json:"category,omitempty"`
	Suburb      string       `json:"suburb,omitempty"`
	RequestID   string       `json:"requestId,omitempty"`
	Debited     int          `json:"debited,omitempty"`
	Amount      int          `json:"amount,omitempty"`
	Area        string       `json:"area,omitempty"`
	Pickup      string       `json:"pickup,omitempty"`
	Destination string       `json:"destination,omitempty"`
	Message     string       `json:"message,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
}

type Feedback struct {
	ProviderID string    `json:"providerId"`
	Rating     int       `json:"rating"`
	Comment    string    `json:"comment"`
	CreatedAt  time.Time `json:"createdAt"`
}

type TesterReport struct {
	ID               string    `json:"id"`
	Timestamp        time.Time `json:"timestamp"`
	DeviceModel      string    `json:"deviceModel"`
	OSVersion        string    `json:"osVersion"`
	BrowserVersion   string    `json:"browserVersion"`
	PageFlow         string    `json:"pageFlow"`
	StepsToReproduce string    `json:"stepsToReproduce"`
	ExpectedResult   string    `json:"expectedResult"`
	ActualResult     string    `json:"actualResult"`
	Severity         string    `json:"severity"`
	Notes            string    `json:"notes"`
}

// Stats is the summary shown on the stats view.
type Stats struct {
	OpenRequests     int `json:"openRequests"`
	MatchedRequests  int `json:"matchedRequests"`
	ProviderBalance  int `json:"providerBalance"`
	TotalConnections int `json:"totalConnections"`
	TesterReports    int `json:"testerReports"`
	TaxiAvailable    int `json:"taxiAvailable"`
	TaxiConnected    int `json:"taxiConnected"`
}
