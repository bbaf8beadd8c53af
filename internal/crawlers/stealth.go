package crawlers

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/RecoveryAshes/ScholarCrawl/internal/models"
	"github.com/RecoveryAshes/ScholarCrawl/internal/utils"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
)

// 在每个新文档执行前注入,遮蔽常见的自动化特征
const (
	webdriverOverrideScript = `Object.defineProperty(Navigator.prototype, 'webdriver', { get: () => undefined });`

	chromeRuntimeScript = `if (!window.chrome) { window.chrome = {}; }
if (!window.chrome.runtime) { window.chrome.runtime = {}; }`

	pluginsOverrideScript = `Object.defineProperty(navigator, 'plugins', {
  get: () => [
    { name: 'Chrome PDF Plugin', filename: 'internal-pdf-viewer', description: 'Portable Document Format' },
    { name: 'Chrome PDF Viewer', filename: 'mhjfbmdgcfjbbpaeojofohoefgiehjai', description: '' },
    { name: 'Native Client', filename: 'internal-nacl-plugin', description: '' },
  ],
});`

	permissionsOverrideScript = `if (navigator.permissions && navigator.permissions.query) {
  const originalQuery = navigator.permissions.query.bind(navigator.permissions);
  navigator.permissions.query = (parameters) =>
    parameters && parameters.name === 'notifications'
      ? Promise.resolve({ state: Notification.permission })
      : originalQuery(parameters);
}`
)

// 拦截的资源类型
var blockedResourceTypes = []proto.NetworkResourceType{
	proto.NetworkResourceTypeImage,
	proto.NetworkResourceTypeStylesheet,
	proto.NetworkResourceTypeFont,
	proto.NetworkResourceTypeMedia,
}

// languagesScript 根据Accept-Language生成navigator.languages覆盖脚本
func languagesScript(acceptLanguage string) string {
	langs := make([]string, 0)
	for _, part := range strings.Split(acceptLanguage, ",") {
		lang := strings.TrimSpace(strings.SplitN(part, ";", 2)[0])
		if lang != "" {
			langs = append(langs, lang)
		}
	}
	if len(langs) == 0 {
		langs = []string{"en-US", "en"}
	}
	encoded, _ := json.Marshal(langs)
	return fmt.Sprintf(`Object.defineProperty(navigator, 'languages', { get: () => %s });`, encoded)
}

// stealthScripts 返回当前身份需要注入的全部脚本
func stealthScripts(fp models.Fingerprint) []string {
	return []string{
		webdriverOverrideScript,
		chromeRuntimeScript,
		languagesScript(fp.AcceptLanguage),
		pluginsOverrideScript,
		permissionsOverrideScript,
	}
}

// applyStealth 为标签页安装身份: UA、视口、时区、额外请求头与反检测脚本
func applyStealth(page *rod.Page, fp models.Fingerprint) error {
	for _, script := range stealthScripts(fp) {
		if _, err := page.EvalOnNewDocument(script); err != nil {
			return fmt.Errorf("注入反检测脚本失败: %w", err)
		}
	}

	if fp.UserAgent != "" {
		err := page.SetUserAgent(&proto.NetworkSetUserAgentOverride{
			UserAgent:      fp.UserAgent,
			AcceptLanguage: fp.AcceptLanguage,
			Platform:       fp.Platform,
		})
		if err != nil {
			return fmt.Errorf("设置User-Agent失败: %w", err)
		}
	}

	if fp.Viewport.Width > 0 && fp.Viewport.Height > 0 {
		scale := fp.Viewport.DeviceScaleFactor
		if scale <= 0 {
			scale = 1
		}
		err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             fp.Viewport.Width,
			Height:            fp.Viewport.Height,
			DeviceScaleFactor: scale,
		})
		if err != nil {
			return fmt.Errorf("设置视口失败: %w", err)
		}
	}

	if fp.Timezone != "" {
		if err := (proto.EmulationSetTimezoneOverride{TimezoneID: fp.Timezone}).Call(page); err != nil {
			// 时区无效不影响抓取
			utils.Warnf("设置时区失败 %s: %v", fp.Timezone, err)
		}
	}

	if pairs := fp.HeaderPairs(); len(pairs) > 0 {
		if _, err := page.SetExtraHeaders(pairs); err != nil {
			return fmt.Errorf("设置额外请求头失败: %w", err)
		}
	}
	return nil
}

// blockResources 拦截图片、样式、字体、媒体请求
func blockResources(page *rod.Page) (*rod.HijackRouter, error) {
	router := page.HijackRequests()
	for _, t := range blockedResourceTypes {
		err := router.Add("*", t, func(h *rod.Hijack) {
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		})
		if err != nil {
			return nil, err
		}
	}
	go router.Run()
	return router, nil
}
