package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/worx-notes/internal/models"
)

// Demo data
var (
	technicians = []string{"Sam Ortiz", "Priya Nair", "Luis Mendes", "Kate Byrne", "Andre Thomas"}
	firstNames  = []string{"Dana", "Chris", "Morgan", "Jordan", "Alex", "Taylor", "Riley"}
	lastNames   = []string{"Reyes", "Nguyen", "Walsh", "Okafor", "Schmidt", "Patel", "Kim"}
	concerns    = []string{
		"Grinding noise when braking",
		"Check engine light on",
		"Vehicle pulls to the left",
		"Vibration at highway speed",
		"Low tire pressure warning",
		"Routine maintenance",
	}
	recommendations = []string{
		"Replace front brake pads and resurface rotors",
		"Rotate and balance tires",
		"Four wheel alignment",
		"Replace rear tires within 3 months",
		"",
	}
	diagnosticCodes = []string{"P0301", "P0420", "P0171", "C0035", "U0100"}
)

var authToken string

// diagnosticFile matches the API's attachment body.
type diagnosticFile struct {
	Filename string `json:"filename"`
	Content  string `json:"content"`
}

// seedSheet is one POST /api/repairs body.
type seedSheet struct {
	models.RepairSheet
	DiagnosticFile *diagnosticFile `json:"diagnostic_file,omitempty"`
}

func pick(options []string) string {
	return options[rand.Intn(len(options))]
}

// randomSheet builds a plausible repair sheet for RO number ro.
func randomSheet(ro int) seedSheet {
	sheet := models.NewRepairSheet()
	sheet.TechnicianName = pick(technicians)
	sheet.RONumber = fmt.Sprintf("RO-%05d", ro)
	sheet.CustomerFirstName = pick(firstNames)
	sheet.CustomerLastName = pick(lastNames)
	sheet.MileageIn = 15000 + rand.Intn(150000)
	sheet.MileageOut = sheet.MileageIn + rand.Intn(20)
	sheet.CustomerConcern = pick(concerns)
	sheet.Recommendations = pick(recommendations)

	tread := func() int { return 2 + rand.Intn(9) }
	sheet.TireTread = models.TireTread{LF: tread(), RF: tread(), LR: tread(), RR: tread()}

	if rand.Intn(2) == 0 {
		sheet.FrontBrakePadUnit = models.UnitPercent
		sheet.BrakePads.LF = 10 + rand.Intn(90)
		sheet.BrakePads.RF = sheet.BrakePads.LF
	} else {
		sheet.BrakePads.LF = 2 + rand.Intn(10)
		sheet.BrakePads.RF = sheet.BrakePads.LF
	}
	sheet.BrakePads.LR = 2 + rand.Intn(10)
	sheet.BrakePads.RR = sheet.BrakePads.LR

	psi := func() int { return 26 + rand.Intn(10) }
	sheet.TirePressure = models.TirePressure{
		FrontLeftIn: psi(), FrontRightIn: psi(), RearLeftIn: psi(), RearRightIn: psi(),
		FrontOut: 35, RearOut: 35,
	}

	out := seedSheet{RepairSheet: sheet}
	if rand.Intn(3) == 0 {
		code := pick(diagnosticCodes)
		out.DiagnosticFile = &diagnosticFile{
			Filename: fmt.Sprintf("scan_%s.txt", code),
			Content:  fmt.Sprintf("DTC %s\nMileage %d\nFreeze frame captured\n", code, sheet.MileageIn),
		}
	}
	return out
}

func authorizedPost(url string, contentType string, body *bytes.Buffer) (*http.Response, error) {
	req, err := http.NewRequest(http.MethodPost, url, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)
	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	client := &http.Client{Timeout: 10 * time.Second}
	return client.Do(req)
}

// createSheet posts one sheet and returns its ID.
func createSheet(apiURL string, sheet seedSheet) (string, error) {
	data, err := json.Marshal(sheet)
	if err != nil {
		return "", fmt.Errorf("failed to marshal repair sheet: %w", err)
	}

	resp, err := authorizedPost(apiURL+"/repairs", "application/json", bytes.NewBuffer(data))
	if err != nil {
		return "", fmt.Errorf("failed to create repair sheet: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("repair sheet creation failed with status %d: %s", resp.StatusCode, bytes.TrimSpace(detail))
	}

	var created models.RepairSheet
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}

	log.WithFields(log.Fields{
		"id":         created.ID.Hex(),
		"ro_number":  created.RONumber,
		"technician": created.TechnicianName,
		"attachment": created.DiagnosticFileName,
	}).Info("Created repair sheet")
	return created.ID.Hex(), nil
}

// seed creates count sheets, then keeps adding one per interval until ctx
// ends when interval is positive. It returns the number created.
func seed(ctx context.Context, apiURL string, count int, interval time.Duration) int {
	created := 0
	next := 1
	for ; next <= count; next++ {
		if _, err := createSheet(apiURL, randomSheet(next)); err != nil {
			log.WithError(err).Error("Failed to create repair sheet")
			continue
		}
		created++
	}
	if interval <= 0 {
		return created
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return created
		case <-tick.C:
			if _, err := createSheet(apiURL, randomSheet(next)); err != nil {
				log.WithError(err).Error("Failed to create repair sheet")
			} else {
				created++
			}
			next++
		}
	}
}

func main() {
	authToken = os.Getenv("SEED_API_KEY")
	if authToken == "" {
		authToken = os.Getenv("PUBLIC_API_KEY")
	}

	count := 10
	if val := os.Getenv("SEED_COUNT"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			count = n
		}
	}

	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}

	var interval time.Duration
	if v := os.Getenv("SEED_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 1 {
			interval = time.Duration(n) * time.Second
		}
	}

	log.WithFields(log.Fields{
		"count":    count,
		"api_url":  apiURL,
		"interval": interval,
	}).Info("Seeding repair sheets")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	created := seed(ctx, apiURL, count, interval)
	log.WithField("created", created).Info("Seeding finished")
}
