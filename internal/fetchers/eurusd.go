package fetchers

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// EURUSDSources is the 7-source EUR/USD table spanning five
// central-bank reference rates and two exchange tickers.
func EURUSDSources() []Source {
	return []Source{
		{Name: "ecb", Denom: DenomQuote, Fetch: fetchECB},
		{Name: "bankofcanada", Denom: DenomQuote, Fetch: fetchBankOfCanada},
		{Name: "rba", Denom: DenomQuote, Fetch: fetchRBA},
		{Name: "norgesbank", Denom: DenomQuote, Fetch: fetchNorgesBank},
		{Name: "cnb", Denom: DenomQuote, Fetch: fetchCNB},
		{Name: "kraken", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchKrakenTicker(ctx, "EURUSD")
		}},
		{Name: "bitstamp", Denom: DenomQuote, Fetch: func(ctx context.Context) (float64, error) {
			return fetchBitstampTicker(ctx, "eurusd")
		}},
	}
}

func fetchECB(ctx context.Context) (float64, error) {
	var out struct {
		Rates struct {
			USD float64 `json:"USD"`
		} `json:"rates"`
	}
	if err := getJSON(ctx, "https://api.frankfurter.dev/v1/latest?symbols=USD", &out); err != nil {
		return 0, err
	}
	return out.Rates.USD, nil
}

// fetchBankOfCanada derives EUR/USD as EURCAD / USDCAD from the Bank of
// Canada Valet API, which does not publish EUR/USD directly.
func fetchBankOfCanada(ctx context.Context) (float64, error) {
	var eurcadResp struct {
		Observations []map[string]struct {
			Value string `json:"v"`
		} `json:"observations"`
	}
	if err := getJSON(ctx, "https://www.bankofcanada.ca/valet/observations/FXEURCAD/json?recent=1", &eurcadResp); err != nil {
		return 0, err
	}
	eurcad, err := latestObservation(eurcadResp.Observations, "FXEURCAD")
	if err != nil {
		return 0, err
	}

	var usdcadResp struct {
		Observations []map[string]struct {
			Value string `json:"v"`
		} `json:"observations"`
	}
	if err := getJSON(ctx, "https://www.bankofcanada.ca/valet/observations/FXUSDCAD/json?recent=1", &usdcadResp); err != nil {
		return 0, err
	}
	usdcad, err := latestObservation(usdcadResp.Observations, "FXUSDCAD")
	if err != nil {
		return 0, err
	}
	if usdcad == 0 {
		return 0, fmt.Errorf("fetchers: bank of canada usdcad is zero")
	}
	return eurcad / usdcad, nil
}

func latestObservation(obs []map[string]struct {
	Value string `json:"v"`
}, series string) (float64, error) {
	if len(obs) == 0 {
		return 0, fmt.Errorf("fetchers: bank of canada: no observations for %s", series)
	}
	v, ok := obs[0][series]
	if !ok {
		return 0, fmt.Errorf("fetchers: bank of canada: series %s missing", series)
	}
	return strconv.ParseFloat(v.Value, 64)
}

var rbaUSDRE = regexp.MustCompile(`AU:\s+([\d.]+)\s+USD\s+=\s+1\s+AUD`)
var rbaEURRE = regexp.MustCompile(`AU:\s+([\d.]+)\s+EUR\s+=\s+1\s+AUD`)

// fetchRBA derives EUR/USD from the Reserve Bank of Australia's RSS feed
// as (AUD/USD) / (AUD/EUR), since the feed quotes everything against AUD.
func fetchRBA(ctx context.Context) (float64, error) {
	body, err := getText(ctx, "https://www.rba.gov.au/rss/rss-cb-exchange-rates.xml", nil)
	if err != nil {
		return 0, err
	}
	usdMatch := rbaUSDRE.FindStringSubmatch(body)
	eurMatch := rbaEURRE.FindStringSubmatch(body)
	if usdMatch == nil || eurMatch == nil {
		return 0, fmt.Errorf("fetchers: could not parse rba xml")
	}
	audUSD, err := strconv.ParseFloat(usdMatch[1], 64)
	if err != nil {
		return 0, err
	}
	audEUR, err := strconv.ParseFloat(eurMatch[1], 64)
	if err != nil {
		return 0, err
	}
	if audEUR == 0 {
		return 0, fmt.Errorf("fetchers: rba audEUR is zero")
	}
	return audUSD / audEUR, nil
}

type norgesBankResponse struct {
	Data struct {
		DataSets []struct {
			Series map[string]struct {
				Observations map[string][]string `json:"observations"`
			} `json:"series"`
		} `json:"dataSets"`
	} `json:"data"`
}

// fetchNorgesBank derives EUR/USD as EURNOK / USDNOK from Norges Bank's
// SDMX-JSON exchange-rate API.
func fetchNorgesBank(ctx context.Context) (float64, error) {
	var eurnokResp norgesBankResponse
	if err := getJSON(ctx, "https://data.norges-bank.no/api/data/EXR/B.EUR.NOK.SP?format=sdmx-json&lastNObservations=1", &eurnokResp); err != nil {
		return 0, err
	}
	eurnok, err := latestNorgesObservation(eurnokResp)
	if err != nil {
		return 0, err
	}

	var usdnokResp norgesBankResponse
	if err := getJSON(ctx, "https://data.norges-bank.no/api/data/EXR/B.USD.NOK.SP?format=sdmx-json&lastNObservations=1", &usdnokResp); err != nil {
		return 0, err
	}
	usdnok, err := latestNorgesObservation(usdnokResp)
	if err != nil {
		return 0, err
	}
	if usdnok == 0 {
		return 0, fmt.Errorf("fetchers: norges bank usdnok is zero")
	}
	return eurnok / usdnok, nil
}

func latestNorgesObservation(r norgesBankResponse) (float64, error) {
	if len(r.Data.DataSets) == 0 {
		return 0, fmt.Errorf("fetchers: norges bank: no datasets")
	}
	series, ok := r.Data.DataSets[0].Series["0:0:0:0"]
	if !ok {
		return 0, fmt.Errorf("fetchers: norges bank: missing series")
	}
	var last string
	for _, v := range series.Observations {
		if len(v) > 0 {
			last = v[0]
		}
	}
	if last == "" {
		return 0, fmt.Errorf("fetchers: norges bank: no observations")
	}
	return strconv.ParseFloat(last, 64)
}

// fetchCNB derives EUR/USD from the Czech National Bank's daily
// pipe-delimited fixing table as (EUR/CZK rate-per-amount) / (USD/CZK
// rate-per-amount).
func fetchCNB(ctx context.Context) (float64, error) {
	body, err := getText(ctx, "https://www.cnb.cz/en/financial-markets/foreign-exchange-market/central-bank-exchange-rate-fixing/central-bank-exchange-rate-fixing/daily.txt", nil)
	if err != nil {
		return 0, err
	}
	lines := strings.Split(strings.TrimSpace(body), "\n")
	var eurRate, usdRate float64
	var haveEUR, haveUSD bool
	for _, line := range lines[2:] {
		parts := strings.Split(line, "|")
		if len(parts) < 5 {
			continue
		}
		code := strings.TrimSpace(parts[3])
		amount, errA := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64)
		rate, errR := strconv.ParseFloat(strings.TrimSpace(parts[4]), 64)
		if errA != nil || errR != nil || amount == 0 {
			continue
		}
		switch code {
		case "EUR":
			eurRate = rate / amount
			haveEUR = true
		case "USD":
			usdRate = rate / amount
			haveUSD = true
		}
	}
	if !haveEUR || !haveUSD {
		return 0, fmt.Errorf("fetchers: could not parse cnb data")
	}
	if usdRate == 0 {
		return 0, fmt.Errorf("fetchers: cnb usd rate is zero")
	}
	return eurRate / usdRate, nil
}
