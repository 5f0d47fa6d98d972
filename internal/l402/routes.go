package l402

// Route maps one public L402 path to a price in satoshis and the pair
// route key (§4.B) the handler aggregates and signs after authentication.
type Route struct {
	Path      string
	PairRoute string
	PriceSats int64
}

// Routes is the static public-path table, mirroring the proxy's ROUTES
// map: one entry per priced pair, independent of the x402 price list.
var Routes = []Route{
	{Path: "/oracle/btcusd", PairRoute: "btcusd", PriceSats: 10},
	{Path: "/oracle/btcusd/vwap", PairRoute: "btcusd/vwap", PriceSats: 20},
	{Path: "/oracle/ethusd", PairRoute: "ethusd", PriceSats: 10},
	{Path: "/oracle/eurusd", PairRoute: "eurusd", PriceSats: 10},
	{Path: "/oracle/xauusd", PairRoute: "xauusd", PriceSats: 10},
	{Path: "/oracle/btceur", PairRoute: "btceur", PriceSats: 10},
	{Path: "/oracle/xaueur", PairRoute: "xaueur", PriceSats: 10},
}

// Lookup finds the route table entry for a request path.
func Lookup(path string) (Route, bool) {
	for _, r := range Routes {
		if r.Path == path {
			return r, true
		}
	}
	return Route{}, false
}
