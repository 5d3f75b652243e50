package lookup

// Stage-partitioned billNo to customerId mapping for the appointment
// workflow. Loaded once at init; absence of a mapping is a legitimate
// terminal outcome for an order, not an error.

var customersByStage = map[string]map[string]string{
	"dev": {
		"53370": "10465268",
		"53385": "10467696",
		"53376": "10489251",
		"53345": "10501014",
		"53525": "10493743",
		"53355": "10508494",
		"53517": "10516460",
		"53367": "10528691",
		"53353": "10490821",
		"53518": "10514167",
		"53551": "10495727",
		"53529": "10510168",
		"53526": "10477361",
		"53527": "10486375",
		"53523": "10512447",
		"53342": "10472786",
		"53510": "10513992",
		"53373": "10489488",
		"53341": "10483834",
		"53346": "10508470",
		"53389": "10498369",
		"53524": "10480788",
		"53350": "10505959",
		"54302": "10537523",
		"53386": "10511581",
		"53344": "10488327",
		"53516": "10488510",
		"53354": "10515995",
		"53536": "10478419",
		"53347": "10467083",
		"53374": "10484491",
		"53379": "10508344",
		"53384": "10492416",
		"53395": "10483049",
		"53362": "10513583",
		"53356": "10502508",
		"53357": "10498497",
		"53343": "10514179",
		"53392": "10478676",
		"53360": "10467792",
		"53364": "10498854",
		"53393": "10521382",
		"53514": "10489429",
		"53383": "10491834",
		"53359": "10526650",
		"53378": "10498380",
		"53522": "10524886",
		"53371": "10500974",
		"53352": "10469089",
		"53368": "10501000",
		"53512": "10473932",
		"53387": "10471467",
		"53511": "10467672",
		"53349": "10496344",
		"53361": "10494629",
		"53508": "10477581",
		"53372": "10483790",
		"11935": "10454715",
		"53513": "10472932",
		"53377": "10475501",
		"53515": "10468791",
		"53365": "10526135",
		"53351": "10497338",
		"53394": "10479472",
		"53519": "10509038",
		"53375": "10515481",
		"53366": "10460067",
		"53391": "10502342",
		"53348": "10522143",
		"53358": "10475517",
		"53388": "10511440",
		"53369": "10483662",
		"53521": "10528776",
		"53509": "10476923",
		"53390": "10516026",
		"54304": "10539222",
		"54303": "10536728",
		"53363": "10503834",
	},
	"prod": {
		"53368": "10583560",
		"53356": "10585356",
		"53391": "10582182",
		"53343": "10582083",
		"53517": "10589900",
		"53510": "10587112",
		"11935": "10029364",
		"53364": "10582086",
		"53348": "10585023",
		"53351": "10584378",
		"53377": "10588333",
		"53378": "10585388",
		"53393": "10582214",
		"53374": "10582507",
		"53350": "10585671",
		"53508": "10592397",
		"53512": "10589932",
		"53366": "10582051",
		"53395": "10586729",
		"53344": "10585575",
		"53521": "10587176",
		"53341": "10584442",
		"53357": "10584705",
		"53353": "10589957",
		"53527": "10589703",
		"53362": "10584143",
		"53376": "10582179",
		"53347": "10582571",
		"53369": "10585838",
		"53525": "10588591",
		"53519": "10590126",
		"53513": "10587172",
		"53352": "10584513",
		"53384": "10583872",
		"53383": "10584410",
		"53389": "10584673",
		"53361": "10589925",
		"53360": "10587056",
		"53342": "10586674",
		"53345": "10580886",
		"53522": "10585206",
		"54304": "10604886",
		"53388": "10587120",
		"53514": "10589077",
		"54302": "10612211",
		"53370": "10588724",
		"53515": "10590519",
		"53536": "10592595",
		"53365": "10585943",
		"53511": "10588376",
		"53372": "10585934",
		"53529": "10588344",
		"53518": "10590583",
		"54303": "10608120",
		"53394": "10586960",
		"53387": "10582603",
		"53371": "10585870",
		"53551": "10589391",
		"53392": "10588628",
		"53373": "10587088",
		"53367": "10588179",
		"53524": "10593140",
		"53379": "10584120",
		"53354": "10583515",
		"53390": "10584218",
		"53509": "10587163",
		"53358": "10581789",
		"53359": "10584282",
		"53349": "10584152",
		"53363": "10584250",
		"53385": "10586992",
		"53355": "10585902",
		"53526": "10596785",
		"53346": "10580950",
		"53523": "10588639",
		"53386": "10581821",
		"53375": "10582137",
		"53516": "10589054",
	},
}

// CustomerForBill resolves the customer id subscribed to a bill-to
// number in the given deployment stage
func CustomerForBill(billNo, stage string) (string, bool) {
	mapping, ok := customersByStage[stage]
	if !ok {
		return "", false
	}
	id, ok := mapping[billNo]
	return id, ok
}
