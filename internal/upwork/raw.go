package upwork

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// RawJob is one marketplaceJobPostingsSearch node as returned by the API.
type RawJob struct {
	ID              string     `json:"id"`
	Ciphertext      string     `json:"ciphertext"`
	Title           string     `json:"title"`
	Description     *string    `json:"description"`
	CreatedDateTime string     `json:"createdDateTime"`
	DurationLabel   string     `json:"durationLabel"`
	Engagement      string     `json:"engagement"`
	ExperienceLevel string     `json:"experienceLevel"`
	Category        string     `json:"category"`
	Subcategory     string     `json:"subcategory"`
	JobType         string     `json:"jobType"`
	HourlyBudget    *RawRange  `json:"hourlyBudget"`
	Amount          *RawMoney  `json:"amount"`
	Skills          RawSkills  `json:"skills"`
	Client          *RawClient `json:"client"`
}

type RawRange struct {
	Min *Number `json:"min"`
	Max *Number `json:"max"`
}

type RawMoney struct {
	Value        *Number `json:"value"`
	CurrencyCode string  `json:"currencyCode"`
}

type RawClient struct {
	CompanyName               *string        `json:"companyName"`
	Country                   *RawCountry    `json:"country"`
	TotalFeedback             *float64       `json:"totalFeedback"`
	TotalPostedJobs           *int           `json:"totalPostedJobs"`
	TotalReviews              *int           `json:"totalReviews"`
	PaymentVerificationStatus *string        `json:"paymentVerificationStatus"`
	CreatedDateTime           *string        `json:"createdDateTime"`
	TotalSpent                *RawDisplayAmt `json:"totalSpent"`
}

type RawCountry struct {
	Name *string `json:"name"`
}

type RawDisplayAmt struct {
	Currency     string  `json:"currency"`
	DisplayValue *string `json:"displayValue"`
}

type RawSkill struct {
	Name string `json:"name"`
}

// RawSkills accepts either a plain list of skills or a {"nodes": [...]}
// connection.
type RawSkills []RawSkill

func (s *RawSkills) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if len(data) > 0 && data[0] == '[' {
		var list []RawSkill
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		*s = list
		return nil
	}
	var conn struct {
		Nodes []RawSkill `json:"nodes"`
	}
	if err := json.Unmarshal(data, &conn); err != nil {
		return err
	}
	*s = conn.Nodes
	return nil
}

// Number is a numeric API value that may arrive as a JSON number or string.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(data)
	return nil
}

// String renders the value without trailing zeros when it is numeric.
func (n Number) String() string {
	f, err := strconv.ParseFloat(string(n), 64)
	if err != nil {
		return string(n)
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}

type searchResponse struct {
	Data struct {
		MarketplaceJobPostingsSearch *struct {
			TotalCount int `json:"totalCount"`
			Edges      []struct {
				Node RawJob `json:"node"`
			} `json:"edges"`
			PageInfo struct {
				EndCursor   string `json:"endCursor"`
				HasNextPage bool   `json:"hasNextPage"`
			} `json:"pageInfo"`
		} `json:"marketplaceJobPostingsSearch"`
	} `json:"data"`
}

type probeResponse struct {
	Data struct {
		User *struct {
			NID string `json:"nid"`
		} `json:"user"`
	} `json:"data"`
}

type graphQLError struct {
	Message string `json:"message"`
}
