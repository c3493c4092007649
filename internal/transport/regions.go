package transport

const socketIOPath = "/socket.io/?EIO=4&transport=websocket"

var demoHosts = []string{
	"demo-api-eu.po.market",
	"try-demo-eu.po.market",
}

var liveHosts = []string{
	"api-eu.po.market",
	"api-sc.po.market",
	"api-hk.po.market",
	"api-spb.po.market",
	"api-fr2.po.market",
	"api-us4.po.market",
	"api-us3.po.market",
	"api-us2.po.market",
}

// RegionURLs returns the WebSocket endpoints for a region, in the order
// they should be tried.
func RegionURLs(r Region) []string {
	hosts := demoHosts
	if r == RegionLive {
		hosts = liveHosts
	}
	urls := make([]string, len(hosts))
	for i, h := range hosts {
		urls[i] = "wss://" + h + socketIOPath
	}
	return urls
}
