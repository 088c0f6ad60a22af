package bridge

import (
	"context"

	"github.com/kiedeng/wecom-integration/internal/shared/types"
)

// Vendor abstracts the global capability object the vendor script installs.
// Production wires the real JS-SDK global; tests substitute a fake.
type Vendor interface {
	// Config submits the signed configuration. The outcome arrives through
	// the OnReady / OnError callbacks.
	Config(req ConfigRequest)
	// OnReady registers the callback fired when configuration is accepted.
	OnReady(fn func())
	// OnError registers the callback fired on any vendor-side failure.
	// Registering replaces the previous handler.
	OnError(fn func(errMsg string))

	ShareAppMessage(req ShareRequest, onSuccess func(), onCancel func())
	ShareTimeline(req ShareRequest, onSuccess func(), onCancel func())
	CloseWindow()
	NetworkType(onSuccess func(networkType string), onFail func(errMsg string))
	CheckCapabilities(names []string, onSuccess func(result map[string]bool), onFail func(errMsg string))
}

// Loader acquires the vendor object. The host implementation injects the
// script tag (or finds an existing one) and resolves once the global appears;
// the adapter guarantees Load runs at most once per page.
type Loader interface {
	Load(ctx context.Context) (Vendor, error)
}

// LoaderFunc adapts a function to the Loader interface.
type LoaderFunc func(ctx context.Context) (Vendor, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context) (Vendor, error) { return f(ctx) }

// ConfigRequest is the payload handed to the vendor's config call.
type ConfigRequest struct {
	AppID        string
	Timestamp    int64
	NonceStr     string
	Signature    string
	Beta         bool
	Debug        bool
	Capabilities []string
}

// ShareRequest carries the card content for both share variants. Desc is
// ignored by the timeline variant.
type ShareRequest struct {
	Title  string
	Desc   string
	Link   string
	ImgURL string
}

// newConfigRequest binds a signed payload to the full capability allow-list.
func newConfigRequest(cfg types.BridgeConfig) ConfigRequest {
	return ConfigRequest{
		AppID:        cfg.AppID,
		Timestamp:    cfg.Timestamp,
		NonceStr:     cfg.NonceStr,
		Signature:    cfg.Signature,
		Beta:         true,
		Debug:        false,
		Capabilities: CapabilityList(),
	}
}

// capabilityList is every capability name the host can grant. The host
// grants capabilities at configuration time only, with no incremental
// elevation, so the full list is requested even though most entries go
// unused.
var capabilityList = []string{
	"onMenuShareTimeline", "onMenuShareAppMessage", "onMenuShareQQ",
	"onMenuShareWeibo", "onMenuShareQZone",
	"hideMenuItems", "showMenuItems", "hideAllNonBaseMenuItem",
	"showAllNonBaseMenuItem", "closeWindow",
	"scanQRCode", "chooseImage", "previewImage", "uploadImage",
	"downloadImage", "getLocation", "openLocation", "getNetworkType",
	"openUrl", "getLocalImgData", "localImageToBase64",
	"startRecord", "stopRecord", "onVoiceRecordEnd", "playVoice",
	"pauseVoice", "stopVoice", "onVoicePlayEnd", "uploadVoice",
	"downloadVoice", "translateVoice",
	"onHistoryBack", "testSpeed", "getContext", "postMessage", "log",
	"setStorage", "getStorage", "removeStorage", "clearStorage",
	"getStorageInfo",
	"startMonitoringBeacons", "stopMonitoringBeacons", "onBeaconsInRange",
	"offBeaconsInRange",
	"checkJsApi",
	"onMenuShareWechat", "onMenuShareWechatWork",
	"onMenuShareWechatWorkTimeline", "onMenuShareWechatWorkAppMessage",
	"onMenuShareWechatWorkQQ", "onMenuShareWechatWorkWeibo",
	"onMenuShareWechatWorkQZone",
}

// CapabilityList returns a copy of the full capability allow-list.
func CapabilityList() []string {
	out := make([]string, len(capabilityList))
	copy(out, capabilityList)
	return out
}
