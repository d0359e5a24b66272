package graph

// defaultPeers 常见大盘股与ETF的静态关系表
var defaultPeers = map[string]Peers{
	"AAPL": {
		SupplyChain: []string{"TSM", "HON", "QCOM", "AVGO", "SWKS", "STM"},
		Competitors: []string{"MSFT", "GOOGL", "SMSN.F"},
		SectorETF:   []string{"XLK", "VGT"},
		Index:       []string{"SPY", "QQQ", "DIA"},
	},
	"MSFT": {
		SupplyChain: []string{"INTC", "AMD", "NVDA"},
		Competitors: []string{"AAPL", "GOOGL", "AMZN", "CRM", "ORCL"},
		SectorETF:   []string{"XLK", "VGT"},
		Index:       []string{"SPY", "QQQ", "DIA"},
	},
	"GOOGL": {
		SupplyChain: []string{"TSM", "NVDA", "AMD"},
		Competitors: []string{"META", "MSFT", "AMZN", "AAPL"},
		SectorETF:   []string{"XLK", "VGT", "XLC"},
		Index:       []string{"SPY", "QQQ"},
	},
	"AMZN": {
		SupplyChain: []string{"UPS", "FDX", "NVDA", "AMD"},
		Competitors: []string{"WMT", "TGT", "MSFT", "GOOGL"},
		SectorETF:   []string{"XLY", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"META": {
		SupplyChain: []string{"NVDA", "TSM", "AMD"},
		Competitors: []string{"GOOGL", "SNAP", "PINS", "TWTR"},
		SectorETF:   []string{"XLC", "VGT"},
		Index:       []string{"SPY", "QQQ"},
	},
	"NFLX": {
		SupplyChain: []string{"AMZN", "MSFT", "GOOGL"},
		Competitors: []string{"DIS", "WBD", "PARA", "CMCSA"},
		SectorETF:   []string{"XLC"},
		Index:       []string{"SPY", "QQQ"},
	},
	"NVDA": {
		SupplyChain: []string{"TSM", "SK", "MU", "LRCX", "ASML"},
		Competitors: []string{"AMD", "INTC", "QCOM"},
		SectorETF:   []string{"SMH", "SOXX", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"AMD": {
		SupplyChain: []string{"TSM", "ASML", "LRCX"},
		Competitors: []string{"NVDA", "INTC", "QCOM"},
		SectorETF:   []string{"SMH", "SOXX", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"INTC": {
		SupplyChain: []string{"ASML", "LRCX", "AMAT", "KLAC"},
		Competitors: []string{"AMD", "NVDA", "TSM"},
		SectorETF:   []string{"SMH", "SOXX", "XLK"},
		Index:       []string{"SPY", "DIA"},
	},
	"TSM": {
		SupplyChain: []string{"ASML", "LRCX", "AMAT", "KLAC"},
		Competitors: []string{"INTC", "SMSN.F", "GFS"},
		SectorETF:   []string{"SMH", "SOXX"},
		Index:       []string{"EWT"},
	},
	"QCOM": {
		SupplyChain: []string{"TSM", "ASML"},
		Competitors: []string{"NVDA", "AMD", "AVGO", "MRVL"},
		SectorETF:   []string{"SMH", "SOXX", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"AVGO": {
		SupplyChain: []string{"TSM", "ASML"},
		Competitors: []string{"QCOM", "TXN", "MRVL"},
		SectorETF:   []string{"SMH", "SOXX", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"ASML": {
		SupplyChain: []string{"ZEISS", "TRUMPF"},
		Competitors: []string{"LRCX", "AMAT", "KLAC"},
		SectorETF:   []string{"SMH", "SOXX"},
		Index:       []string{"EWN"},
	},
	"TSLA": {
		SupplyChain: []string{"PANASONIC", "ALB", "SQM", "LAC", "LTHM"},
		Competitors: []string{"F", "GM", "RIVN", "NIO", "LCID", "XPEV"},
		SectorETF:   []string{"XLY", "DRIV"},
		Index:       []string{"SPY", "QQQ"},
	},
	"F": {
		SupplyChain: []string{"ALB", "SQM", "BWA", "APTV"},
		Competitors: []string{"GM", "TSLA", "TM", "HMC", "STLA"},
		SectorETF:   []string{"XLY", "CARZ"},
		Index:       []string{"SPY", "DIA"},
	},
	"GM": {
		SupplyChain: []string{"ALB", "SQM", "BWA", "APTV"},
		Competitors: []string{"F", "TSLA", "TM", "HMC", "STLA"},
		SectorETF:   []string{"XLY", "CARZ"},
		Index:       []string{"SPY"},
	},
	"RIVN": {
		SupplyChain: []string{"ALB", "SQM", "AMZN"},
		Competitors: []string{"TSLA", "F", "GM", "LCID"},
		SectorETF:   []string{"XLY", "DRIV"},
		Index:       nil,
	},
	"NIO": {
		SupplyChain: []string{"CATL", "ALB", "SQM"},
		Competitors: []string{"TSLA", "XPEV", "LI", "BYD"},
		SectorETF:   []string{"DRIV", "KWEB"},
		Index:       []string{"KWEB"},
	},
	"JPM": {
		SupplyChain: nil,
		Competitors: []string{"BAC", "WFC", "C", "GS", "MS"},
		SectorETF:   []string{"XLF", "KBE", "KRE"},
		Index:       []string{"SPY", "DIA"},
	},
	"BAC": {
		SupplyChain: nil,
		Competitors: []string{"JPM", "WFC", "C", "USB"},
		SectorETF:   []string{"XLF", "KBE", "KRE"},
		Index:       []string{"SPY"},
	},
	"GS": {
		SupplyChain: nil,
		Competitors: []string{"MS", "JPM", "C"},
		SectorETF:   []string{"XLF", "KBE"},
		Index:       []string{"SPY", "DIA"},
	},
	"V": {
		SupplyChain: nil,
		Competitors: []string{"MA", "AXP", "PYPL", "SQ"},
		SectorETF:   []string{"XLF", "VFH"},
		Index:       []string{"SPY", "DIA"},
	},
	"MA": {
		SupplyChain: nil,
		Competitors: []string{"V", "AXP", "PYPL", "SQ"},
		SectorETF:   []string{"XLF", "VFH"},
		Index:       []string{"SPY"},
	},
	"JNJ": {
		SupplyChain: nil,
		Competitors: []string{"PFE", "MRK", "ABBV", "LLY"},
		SectorETF:   []string{"XLV", "VHT", "IBB"},
		Index:       []string{"SPY", "DIA"},
	},
	"PFE": {
		SupplyChain: []string{"TMO", "DHR"},
		Competitors: []string{"JNJ", "MRK", "ABBV", "AZN", "MRNA"},
		SectorETF:   []string{"XLV", "VHT", "IBB"},
		Index:       []string{"SPY"},
	},
	"UNH": {
		SupplyChain: nil,
		Competitors: []string{"CVS", "CI", "HUM", "ELV"},
		SectorETF:   []string{"XLV", "VHT"},
		Index:       []string{"SPY", "DIA"},
	},
	"LLY": {
		SupplyChain: []string{"TMO", "DHR"},
		Competitors: []string{"NVO", "MRK", "PFE", "ABBV"},
		SectorETF:   []string{"XLV", "VHT", "IBB"},
		Index:       []string{"SPY"},
	},
	"MRNA": {
		SupplyChain: []string{"TMO", "DHR", "RGEN"},
		Competitors: []string{"PFE", "BNTX", "NVAX"},
		SectorETF:   []string{"XLV", "IBB", "XBI"},
		Index:       []string{"SPY", "QQQ"},
	},
	"XOM": {
		SupplyChain: []string{"SLB", "HAL", "BKR"},
		Competitors: []string{"CVX", "COP", "EOG", "OXY"},
		SectorETF:   []string{"XLE", "VDE", "OIH"},
		Index:       []string{"SPY", "DIA"},
	},
	"CVX": {
		SupplyChain: []string{"SLB", "HAL", "BKR"},
		Competitors: []string{"XOM", "COP", "EOG", "OXY"},
		SectorETF:   []string{"XLE", "VDE", "OIH"},
		Index:       []string{"SPY", "DIA"},
	},
	"COP": {
		SupplyChain: []string{"SLB", "HAL", "BKR"},
		Competitors: []string{"XOM", "CVX", "EOG", "OXY"},
		SectorETF:   []string{"XLE", "VDE"},
		Index:       []string{"SPY"},
	},
	"WMT": {
		SupplyChain: []string{"UPS", "FDX"},
		Competitors: []string{"TGT", "COST", "AMZN", "KR"},
		SectorETF:   []string{"XLP", "XRT", "VDC"},
		Index:       []string{"SPY", "DIA"},
	},
	"COST": {
		SupplyChain: []string{"UPS", "FDX"},
		Competitors: []string{"WMT", "TGT", "BJ", "AMZN"},
		SectorETF:   []string{"XLP", "VDC"},
		Index:       []string{"SPY", "QQQ"},
	},
	"HD": {
		SupplyChain: nil,
		Competitors: []string{"LOW", "WMT", "TGT"},
		SectorETF:   []string{"XHB", "XLY", "ITB"},
		Index:       []string{"SPY", "DIA"},
	},
	"NKE": {
		SupplyChain: []string{"VFC", "DECK"},
		Competitors: []string{"ADDYY", "UAA", "LULU", "SKX"},
		SectorETF:   []string{"XLY", "XRT"},
		Index:       []string{"SPY", "DIA"},
	},
	"SBUX": {
		SupplyChain: nil,
		Competitors: []string{"DNKN", "MCD", "CMG"},
		SectorETF:   []string{"XLY", "PBJ"},
		Index:       []string{"SPY", "QQQ"},
	},
	"BA": {
		SupplyChain: []string{"SPR", "HWM", "TDG", "HEI"},
		Competitors: []string{"EADSY", "LMT", "RTX", "NOC"},
		SectorETF:   []string{"XLI", "ITA", "PPA"},
		Index:       []string{"SPY", "DIA"},
	},
	"CAT": {
		SupplyChain: nil,
		Competitors: []string{"DE", "KMTUY", "CNHI"},
		SectorETF:   []string{"XLI", "VIS"},
		Index:       []string{"SPY", "DIA"},
	},
	"HON": {
		SupplyChain: nil,
		Competitors: []string{"MMM", "EMR", "ROK", "ITW"},
		SectorETF:   []string{"XLI", "VIS"},
		Index:       []string{"SPY", "DIA"},
	},
	"UPS": {
		SupplyChain: nil,
		Competitors: []string{"FDX", "AMZN", "DHL"},
		SectorETF:   []string{"XLI", "IYT"},
		Index:       []string{"SPY", "DIA"},
	},
	"AMT": {
		SupplyChain: nil,
		Competitors: []string{"CCI", "SBAC", "UNIT"},
		SectorETF:   []string{"XLRE", "VNQ", "IYR"},
		Index:       []string{"SPY"},
	},
	"PLD": {
		SupplyChain: nil,
		Competitors: []string{"DRE", "STAG", "EGP"},
		SectorETF:   []string{"XLRE", "VNQ", "IYR"},
		Index:       []string{"SPY"},
	},
	"CRM": {
		SupplyChain: []string{"AMZN", "MSFT", "GOOGL"},
		Competitors: []string{"MSFT", "ORCL", "SAP", "NOW", "WDAY"},
		SectorETF:   []string{"IGV", "WCLD"},
		Index:       []string{"SPY"},
	},
	"ORCL": {
		SupplyChain: nil,
		Competitors: []string{"MSFT", "CRM", "SAP", "IBM"},
		SectorETF:   []string{"IGV", "XLK"},
		Index:       []string{"SPY"},
	},
	"NOW": {
		SupplyChain: []string{"AMZN", "MSFT"},
		Competitors: []string{"CRM", "WDAY", "SPLK"},
		SectorETF:   []string{"IGV", "WCLD"},
		Index:       []string{"SPY"},
	},
	"ADBE": {
		SupplyChain: nil,
		Competitors: []string{"CRM", "MSFT", "CANV"},
		SectorETF:   []string{"IGV", "XLK"},
		Index:       []string{"SPY", "QQQ"},
	},
	"ALB": {
		SupplyChain: nil,
		Competitors: []string{"SQM", "LTHM", "LAC", "PLL"},
		SectorETF:   []string{"LIT", "REMX"},
		Index:       nil,
	},
	"SQM": {
		SupplyChain: nil,
		Competitors: []string{"ALB", "LTHM", "LAC"},
		SectorETF:   []string{"LIT", "REMX"},
		Index:       nil,
	},
	"SPY": {
		SupplyChain: nil,
		Competitors: []string{"VOO", "IVV"},
		SectorETF:   nil,
		Index:       nil,
	},
	"QQQ": {
		SupplyChain: nil,
		Competitors: []string{"QQQM", "VGT"},
		SectorETF:   nil,
		Index:       nil,
	},
}
