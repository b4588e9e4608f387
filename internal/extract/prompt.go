package extract

import "fmt"

// extractionPromptTemplate turns a dictated purchase into the structured
// list schema. Rules cover colloquial Sichuan price phrasing ("块", spoken
// numbers) because that is what the recognizer produces for our users.
const extractionPromptTemplate = `你是一个专业的采购清单解析助手。请将用户的语音输入转换为结构化的采购清单 JSON。

## 输出格式要求
严格按照以下 JSON Schema 输出，不要添加任何额外字段或注释：

{
  "supplier": "供应商全称",
  "notes": "备注信息（如有）",
  "items": [
    {
      "name": "商品名称",
      "specification": "规格/包装描述（如：带皮、黄心、500ml*12）",
      "quantity": 数量(数字),
      "unit": "单位",
      "unitPrice": 单价(数字),
      "total": 小计(数字)
    }
  ]
}

## 解析规则
1. 数量和单价必须是纯数字，不带单位
2. 小计自动计算：total = quantity × unitPrice
3. 单位标准化：常见单位包括 斤、公斤、kg、箱、袋、桶、瓶、包、件、个
4. 供应商：如果没有明确说明，设为空字符串 ""
5. 规格：从描述中提取包装信息，如"去皮"、"带皮"、"黄心"、"500ml*12"等
6. 备注：提取与商品无关的额外说明，如"品质不错"、"个头较小"等

## 四川方言/口语适配
- "块" = 元（货币单位）
- "一共xxx块" = 总价（用于验证计算）
- 数字可能是口语形式："一块二" = 1.2，"六十八" = 68

## 示例
输入: "供应商是双汇冷鲜肉直供，去皮五花肉30斤，68块一斤，一共2040块"
输出:
{
  "supplier": "双汇冷鲜肉直供",
  "notes": "",
  "items": [
    {
      "name": "去皮五花肉",
      "specification": "去皮",
      "quantity": 30,
      "unit": "斤",
      "unitPrice": 68,
      "total": 2040
    }
  ]
}

## 当前语音输入
%s

请直接输出 JSON，不要包含任何解释或 markdown 代码块标记。`

func extractionPrompt(text string) string {
	return fmt.Sprintf(extractionPromptTemplate, text)
}
