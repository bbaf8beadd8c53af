package parsers

import (
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/RecoveryAshes/ScholarCrawl/internal/matching"
)

// blockPhrases 拦截页常见文案 (已小写、去变音符号)
var blockPhrases = []string{
	"unusual traffic",
	"not a robot",
	"i'm not a robot",
	"are you a robot",
	"verify you are human",
	"please show you're not a robot",
	"automated queries",
	"our systems have detected",
	"trafic exceptionnel",
	"je ne suis pas un robot",
	"requetes automatisees",
}

// blockSelectors 拦截页特有的元素
// 正文里的"captcha"可能是论文标题,验证码只按元素判断
var blockSelectors = []string{
	"#gs_captcha_ccl",
	"#gs_captcha_f",
	"#captcha-form",
	"#recaptcha",
	".g-recaptcha",
	"iframe[src*='recaptcha']",
}

// contentMarkers 正常页面才有的内容元素
// 页面含这些元素时标题、摘要里的文案不作为拦截依据
var contentMarkers = []string{
	"#gsc_oci_title",
	"tr.gsc_a_tr",
	".gs_ai_name",
	"#gsc_prf",
	"#gsc_prf_in",
}

// DetectBlock 检查渲染后的页面是否为人机验证/流量拦截页
// 返回是否被拦截以及命中的依据
func DetectBlock(html string) (bool, string) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return false, ""
	}

	for _, sel := range blockSelectors {
		if doc.Find(sel).Length() > 0 {
			return true, sel
		}
	}

	for _, sel := range contentMarkers {
		if doc.Find(sel).Length() > 0 {
			return false, ""
		}
	}

	doc.Find("script,noscript,style").Remove()
	text := matching.Fold(cleanText(doc.Find("body").Text()))
	if text == "" {
		text = matching.Fold(cleanText(doc.Text()))
	}
	text = strings.ReplaceAll(text, "’", "'")
	for _, phrase := range blockPhrases {
		if strings.Contains(text, phrase) {
			return true, phrase
		}
	}
	return false, ""
}
